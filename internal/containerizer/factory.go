package containerizer

import (
	"fmt"
	"strings"
)

// NewContainerRuntime returns the runtime named by the containerRuntime
// setting. An empty name selects docker.
func NewContainerRuntime(name string) (ContainerRuntime, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "docker", "":
		return NewDockerRuntime()
	default:
		return nil, fmt.Errorf("unsupported container runtime %q", name)
	}
}
