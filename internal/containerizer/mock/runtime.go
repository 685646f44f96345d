// Package mock provides an in-memory ContainerRuntime for tests of the
// packages that provision environments.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reportharness/internal/containerizer"
)

// Call is one recorded runtime invocation.
type Call struct {
	Op   string
	Args []string
}

// Runtime records every call and fails the operations named in FailOn.
// Created containers get sequential IDs.
type Runtime struct {
	mu      sync.Mutex
	calls   []Call
	nextID  int
	failOn  map[string]error
	configs map[string]containerizer.ContainerConfig
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		failOn:  make(map[string]error),
		configs: make(map[string]containerizer.ContainerConfig),
	}
}

// FailOn makes every call of op return err. op is the method name, e.g.
// "CreateContainer". Use "CreateContainer:<name-substring>" to fail only the
// matching container.
func (r *Runtime) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[op] = err
}

// Recover removes a failure registered with FailOn.
func (r *Runtime) Recover(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failOn, op)
}

func (r *Runtime) record(op string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Args: args})
	if err, ok := r.failOn[op]; ok {
		return err
	}
	for key, err := range r.failOn {
		name, filter, found := strings.Cut(key, ":")
		if !found || name != op {
			continue
		}
		for _, arg := range args {
			if strings.Contains(arg, filter) {
				return err
			}
		}
	}
	return nil
}

// Calls returns a copy of every recorded call.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (r *Runtime) CallsTo(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Config returns the configuration a container was created with.
func (r *Runtime) Config(id string) (containerizer.ContainerConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

func (r *Runtime) CreateNetwork(_ context.Context, name string) error {
	return r.record("CreateNetwork", name)
}

func (r *Runtime) RemoveNetwork(_ context.Context, name string) error {
	return r.record("RemoveNetwork", name)
}

func (r *Runtime) CreateVolume(_ context.Context, name string) error {
	return r.record("CreateVolume", name)
}

func (r *Runtime) RemoveVolume(_ context.Context, name string) error {
	return r.record("RemoveVolume", name)
}

func (r *Runtime) CreateContainer(_ context.Context, config containerizer.ContainerConfig) (string, error) {
	if err := r.record("CreateContainer", config.Name, config.Image); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("container-%d", r.nextID)
	r.configs[id] = config
	return id, nil
}

func (r *Runtime) StartContainer(_ context.Context, containerID string) error {
	return r.record("StartContainer", containerID)
}

func (r *Runtime) StopContainer(_ context.Context, containerID string) error {
	return r.record("StopContainer", containerID)
}

func (r *Runtime) RemoveContainer(_ context.Context, containerID string) error {
	return r.record("RemoveContainer", containerID)
}

func (r *Runtime) CopyToContainer(_ context.Context, srcPath, containerID, destPath string) error {
	return r.record("CopyToContainer", srcPath, containerID, destPath)
}

func (r *Runtime) CopyFromContainer(_ context.Context, containerID, srcPath, destPath string) error {
	return r.record("CopyFromContainer", containerID, srcPath, destPath)
}

func (r *Runtime) BuildImage(_ context.Context, tag, contextDir string) error {
	return r.record("BuildImage", tag, contextDir)
}

var _ containerizer.ContainerRuntime = (*Runtime)(nil)
