package containerizer

import "context"

// ContainerRuntime defines the container operations needed to build and tear
// down a test environment. Every method shells out once; a non-zero exit is
// the only failure signal.
type ContainerRuntime interface {
	// CreateNetwork creates a user-defined bridge network
	CreateNetwork(ctx context.Context, name string) error

	// RemoveNetwork removes a network
	RemoveNetwork(ctx context.Context, name string) error

	// CreateVolume creates a named volume
	CreateVolume(ctx context.Context, name string) error

	// RemoveVolume removes a named volume
	RemoveVolume(ctx context.Context, name string) error

	// CreateContainer creates, but does not start, a container and returns its ID
	CreateContainer(ctx context.Context, config ContainerConfig) (string, error)

	// StartContainer starts a created container
	StartContainer(ctx context.Context, containerID string) error

	// StopContainer stops a running container
	StopContainer(ctx context.Context, containerID string) error

	// RemoveContainer removes a container
	RemoveContainer(ctx context.Context, containerID string) error

	// CopyToContainer copies a host file or directory into a container
	CopyToContainer(ctx context.Context, srcPath, containerID, destPath string) error

	// CopyFromContainer copies a file or directory out of a container
	CopyFromContainer(ctx context.Context, containerID, srcPath, destPath string) error

	// BuildImage builds an image from a local build context and tags it
	BuildImage(ctx context.Context, tag, contextDir string) error
}

// ContainerConfig holds configuration for creating a container
type ContainerConfig struct {
	Name         string        // Container name
	Image        string        // Container image
	Network      string        // Network to attach to
	NetworkAlias string        // DNS alias on Network
	Mounts       []Mount       // Named volume mounts
	Ports        []PortMapping // Published ports
	CPUs         string        // CPU limit, e.g. "1" or "0.5"
	Args         []string      // Arguments passed after the image
}

// Mount attaches a named volume at Target inside the container.
type Mount struct {
	Source string
	Target string
}

// PortMapping publishes ContainerPort on HostPort.
type PortMapping struct {
	HostPort      int
	ContainerPort int
}
