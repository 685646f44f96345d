package containerizer

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"reportharness/pkg/logging"
)

const dockerSubsystem = "Docker"

// DockerRuntime implements ContainerRuntime using the Docker CLI
type DockerRuntime struct {
	binary string
}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// lookPath is a variable to allow mocking in tests
var lookPath = exec.LookPath

// CommandError is returned when a docker command exits unsuccessfully.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("docker %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nOutput: " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewDockerRuntime creates a new Docker runtime instance
func NewDockerRuntime() (*DockerRuntime, error) {
	// Check if docker is available
	binary, err := lookPath("docker")
	if err != nil {
		return nil, fmt.Errorf("docker command not found in PATH: %w", err)
	}

	// Check if docker daemon is accessible
	ctx := context.Background()
	cmd := execCommandContext(ctx, binary, "info")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}

	return &DockerRuntime{binary: binary}, nil
}

// run executes one docker command and returns its trimmed combined output.
func (d *DockerRuntime) run(ctx context.Context, args ...string) (string, error) {
	logging.Debug(dockerSubsystem, "Running: docker %s", strings.Join(args, " "))

	cmd := execCommandContext(ctx, d.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &CommandError{Args: args, Output: string(output), Err: err}
	}
	return strings.TrimSpace(string(output)), nil
}

// CreateNetwork creates a user-defined bridge network
func (d *DockerRuntime) CreateNetwork(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "network", "create", name); err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	logging.Debug(dockerSubsystem, "Created network %s", name)
	return nil
}

// RemoveNetwork removes a network
func (d *DockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "network", "rm", name); err != nil {
		return fmt.Errorf("failed to remove network %s: %w", name, err)
	}
	return nil
}

// CreateVolume creates a named volume
func (d *DockerRuntime) CreateVolume(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "volume", "create", name); err != nil {
		return fmt.Errorf("failed to create volume %s: %w", name, err)
	}
	logging.Debug(dockerSubsystem, "Created volume %s", name)
	return nil
}

// RemoveVolume removes a named volume
func (d *DockerRuntime) RemoveVolume(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "volume", "rm", name); err != nil {
		return fmt.Errorf("failed to remove volume %s: %w", name, err)
	}
	return nil
}

// CreateContainer creates a container with the given configuration
func (d *DockerRuntime) CreateContainer(ctx context.Context, config ContainerConfig) (string, error) {
	output, err := d.run(ctx, createArgs(config)...)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", config.Name, err)
	}

	// docker prints pull progress before the ID when the image is missing
	lines := strings.Split(output, "\n")
	containerID := strings.TrimSpace(lines[len(lines)-1])
	if containerID == "" {
		return "", fmt.Errorf("failed to create container %s: empty container ID", config.Name)
	}
	logging.Info(dockerSubsystem, "Created container %s with ID %s", config.Name, shortID(containerID))

	return containerID, nil
}

func createArgs(config ContainerConfig) []string {
	args := []string{"container", "create", "--name", config.Name}

	if config.Network != "" {
		args = append(args, "--network", config.Network)
	}
	if config.NetworkAlias != "" {
		args = append(args, "--network-alias", config.NetworkAlias)
	}
	for _, m := range config.Mounts {
		args = append(args, "--mount", fmt.Sprintf("source=%s,target=%s", m.Source, m.Target))
	}
	if config.CPUs != "" {
		args = append(args, "--cpus", config.CPUs)
	}
	for _, p := range config.Ports {
		args = append(args, "-p", strconv.Itoa(p.HostPort)+":"+strconv.Itoa(p.ContainerPort))
	}

	args = append(args, config.Image)
	return append(args, config.Args...)
}

// StartContainer starts a created container
func (d *DockerRuntime) StartContainer(ctx context.Context, containerID string) error {
	if _, err := d.run(ctx, "container", "start", containerID); err != nil {
		return fmt.Errorf("failed to start container %s: %w", shortID(containerID), err)
	}
	return nil
}

// StopContainer stops a running container
func (d *DockerRuntime) StopContainer(ctx context.Context, containerID string) error {
	logging.Debug(dockerSubsystem, "Stopping container %s", shortID(containerID))

	if _, err := d.run(ctx, "container", "stop", containerID); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", shortID(containerID), err)
	}
	return nil
}

// RemoveContainer removes a container
func (d *DockerRuntime) RemoveContainer(ctx context.Context, containerID string) error {
	logging.Debug(dockerSubsystem, "Removing container %s", shortID(containerID))

	if _, err := d.run(ctx, "container", "rm", "-f", containerID); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", shortID(containerID), err)
	}
	return nil
}

// CopyToContainer copies a host file or directory into a container
func (d *DockerRuntime) CopyToContainer(ctx context.Context, srcPath, containerID, destPath string) error {
	if _, err := d.run(ctx, "container", "cp", srcPath, containerID+":"+destPath); err != nil {
		return fmt.Errorf("failed to copy %s into container %s: %w", srcPath, shortID(containerID), err)
	}
	return nil
}

// CopyFromContainer copies a file or directory out of a container
func (d *DockerRuntime) CopyFromContainer(ctx context.Context, containerID, srcPath, destPath string) error {
	if _, err := d.run(ctx, "container", "cp", containerID+":"+srcPath, destPath); err != nil {
		return fmt.Errorf("failed to copy %s from container %s: %w", srcPath, shortID(containerID), err)
	}
	return nil
}

// BuildImage builds an image from a local build context and tags it
func (d *DockerRuntime) BuildImage(ctx context.Context, tag, contextDir string) error {
	logging.Info(dockerSubsystem, "Building image %s from %s", tag, contextDir)

	if _, err := d.run(ctx, "build", "-t", tag, contextDir); err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	return nil
}

func shortID(containerID string) string {
	if len(containerID) > 12 {
		return containerID[:12]
	}
	return containerID
}
