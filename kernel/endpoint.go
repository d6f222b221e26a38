package kernel

// Endpoint identifies a message destination.
type Endpoint uint8

const (
	EPKernel Endpoint = iota
	EPAnimator
	EPLink

	endpointCount
)

func (e Endpoint) String() string {
	switch e {
	case EPKernel:
		return "kernel"
	case EPAnimator:
		return "animator"
	case EPLink:
		return "link"
	default:
		return "unknown"
	}
}
