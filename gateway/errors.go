package gateway

// Canonical validation messages returned to clients
const (
	MsgCreateRequired = "Matrícula y Nombre son obligatorios."
	MsgUpdateRequired = "ID, campo y valor son obligatorios."
	MsgIDRequired     = "ID es obligatorio."
	MsgClearRequired  = "ID y campo son obligatorios."
	MsgInvalidField   = "Campo inválido."
)

// ValidationError means the request was rejected before any remote call
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError wraps a failure returned by the provider.
// Error returns the provider message unchanged; Op names the remote call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
