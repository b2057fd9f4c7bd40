package conn

// State represents a connection lifecycle state.
type State string

const (
	Disconnected   State = "DISCONNECTED"
	Connecting     State = "CONNECTING"
	Authenticating State = "AUTHENTICATING"
	Open           State = "OPEN"
	Reconnecting   State = "RECONNECTING"
	Failed         State = "FAILED"
)

// validTransitions defines allowed state transitions. Failed is terminal
// until a fresh Connect; Disconnected is reachable from anywhere via an
// explicit Close.
var validTransitions = map[State][]State{
	Disconnected:   {Connecting},
	Connecting:     {Authenticating, Reconnecting, Failed, Disconnected},
	Authenticating: {Open, Reconnecting, Failed, Disconnected},
	Open:           {Reconnecting, Disconnected},
	Reconnecting:   {Connecting, Failed, Disconnected},
	Failed:         {Connecting, Disconnected},
}
