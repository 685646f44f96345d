// Package containerizer provides the container runtime abstraction used to
// provision test environments.
//
// ContainerRuntime covers exactly the operations an environment needs:
// networks, named volumes, container create/start/stop/remove, copying files
// in and out of containers and building an image from a local context.
//
// DockerRuntime implements it on top of the docker CLI. Each call runs one
// docker command; the exit code is the sole failure signal and the combined
// output of a failed command is attached to the returned CommandError.
//
//	runtime, err := containerizer.NewContainerRuntime("docker")
//	if err != nil {
//	    return err
//	}
//	id, err := runtime.CreateContainer(ctx, containerizer.ContainerConfig{
//	    Name:    "rh-engine-0-1f0c",
//	    Image:   "qlikcore/engine:12.612.0",
//	    Network: "rh-network-1f0c",
//	    Ports:   []containerizer.PortMapping{{HostPort: 9076, ContainerPort: 9076}},
//	})
//
// All runtime implementations are safe for concurrent use.
package containerizer
