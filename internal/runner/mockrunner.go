package runner

import (
	"context"
	"time"
)

type MockRunner struct {
	Commands     []MockCommand
	Responses    map[string]MockResponse
	ResponseFunc func(name string, args ...string) ([]byte, error)
}

type MockCommand struct {
	Name    string
	Args    []string
	Stdin   []byte
	Timeout time.Duration
	Mode    Mode
}

type MockResponse struct {
	Output []byte
	Error  error
}

func NewMockRunner() *MockRunner {
	return &MockRunner{
		Commands:  []MockCommand{},
		Responses: make(map[string]MockResponse),
	}
}

func (m *MockRunner) Run(
	ctx context.Context,
	timeout time.Duration,
	mode Mode,
	name string,
	args ...string,
) ([]byte, error) {
	m.Commands = append(m.Commands, MockCommand{
		Name:    name,
		Args:    args,
		Timeout: timeout,
		Mode:    mode,
	})
	return m.respond(name, args...)
}

func (m *MockRunner) RunWithInput(
	ctx context.Context,
	timeout time.Duration,
	stdin []byte,
	name string,
	args ...string,
) ([]byte, error) {
	m.Commands = append(m.Commands, MockCommand{
		Name:    name,
		Args:    args,
		Stdin:   append([]byte{}, stdin...),
		Timeout: timeout,
		Mode:    Capture,
	})
	return m.respond(name, args...)
}

func (m *MockRunner) respond(name string, args ...string) ([]byte, error) {
	key := cmdKey(name, args...)
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Error
	}
	if m.ResponseFunc != nil {
		return m.ResponseFunc(name, args...)
	}
	return []byte{}, nil
}

func (m *MockRunner) AddResponse(key string, output []byte, err error) {
	m.Responses[key] = MockResponse{
		Output: output,
		Error:  err,
	}
}

func cmdKey(name string, args ...string) string {
	key := name
	for _, arg := range args {
		key += "|" + arg
	}
	return key
}

func (m *MockRunner) VerifyCommand(name string, args ...string) bool {
	for _, cmd := range m.Commands {
		if cmd.Name == name && argsEqual(cmd.Args, args) {
			return true
		}
	}
	return false
}

func (m *MockRunner) VerifyRunCount(name string, count int) bool {
	runCount := 0
	for _, cmd := range m.Commands {
		if cmd.Name == name {
			runCount++
		}
	}
	return runCount == count
}

// LastInput returns the stdin of the most recent call to name.
func (m *MockRunner) LastInput(name string) []byte {
	for i := len(m.Commands) - 1; i >= 0; i-- {
		if m.Commands[i].Name == name && m.Commands[i].Stdin != nil {
			return m.Commands[i].Stdin
		}
	}
	return nil
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
