package websocket

// Message is the outbound frame envelope. Method names the server
// operation the payload belongs to.
type Message struct {
	Method  string `json:"method"`
	Payload any    `json:"payload,omitempty"`
}

func AuthenticateAck() Message {
	return Message{Method: "authenticateAck"}
}

func ViewTaskInfoAck(task any) Message {
	return Message{Method: "viewTaskInfoAck", Payload: task}
}

// TaskInfo is pushed when a viewed task's presented values change.
func TaskInfo(task any) Message {
	return Message{Method: "taskInfo", Payload: task}
}

func ViewGameInfoAck(info any) Message {
	return Message{Method: "viewGameInfoAck", Payload: info}
}

// GameInfo is pushed to player viewers when public game stats change.
func GameInfo(info any) Message {
	return Message{Method: "gameInfo", Payload: info}
}

func ViewGameHostInfoAck(info any) Message {
	return Message{Method: "viewGameHostInfoAck", Payload: info}
}

// GameHostInfo is pushed to host/admin viewers when the game changes.
func GameHostInfo(info any) Message {
	return Message{Method: "gameHostInfo", Payload: info}
}

// GameEnded is the terminal notification; connections are disconnected
// after it is sent.
func GameEnded(result any) Message {
	return Message{Method: "gameEnded", Payload: result}
}

// Kicked tells a removed player why their connection is about to close.
func Kicked(reason string) Message {
	return Message{Method: "kicked", Payload: map[string]string{"reason": reason}}
}

func ErrorMessage(kind, message string) Message {
	return Message{Method: "error", Payload: map[string]string{"type": kind, "message": message}}
}
