package domain

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	IPAddress string `json:"ip_address,omitempty"`
	Port      int    `json:"port,omitempty"` // workload port published on the host
}

// ContainerState is the runtime view of a single container, as reported
// by an inspect call after start.
type ContainerState struct {
	Running  bool
	ExitCode int
	Error    string
}
