// Package memory resolves the durable conversation store and synchronizes
// turns around the agent's message lifecycle.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	controltypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"

	"agentcore-agent/internal/domain"
)

const (
	memoryPollAttempts = 30
	memoryPollDelay    = 5 * time.Second
)

// sleep is swapped out in tests to keep the activation poll instant.
var sleep = time.Sleep

// memoryControlAPI is the minimal memory control-plane interface required by
// Manager. *bedrockagentcorecontrol.Client satisfies it.
type memoryControlAPI interface {
	ListMemories(ctx context.Context, in *bedrockagentcorecontrol.ListMemoriesInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListMemoriesOutput, error)
	CreateMemory(ctx context.Context, in *bedrockagentcorecontrol.CreateMemoryInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateMemoryOutput, error)
	GetMemory(ctx context.Context, in *bedrockagentcorecontrol.GetMemoryInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.GetMemoryOutput, error)
	DeleteMemory(ctx context.Context, in *bedrockagentcorecontrol.DeleteMemoryInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.DeleteMemoryOutput, error)
}

// Manager owns the conversation store lifecycle on the memory control plane.
type Manager struct {
	api memoryControlAPI
	log *slog.Logger
}

// NewManager creates a Manager.
func NewManager(api memoryControlAPI, log *slog.Logger) (*Manager, error) {
	if api == nil {
		return nil, errors.New("memory: api must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{api: api, log: log}, nil
}

// EnsureMemory returns the id of the store with the given logical name,
// creating it when absent and waiting for it to become active. The service
// suffixes memory ids with the logical name as prefix, so lookup matches on
// the "name-" prefix across all listing pages.
func (m *Manager) EnsureMemory(ctx context.Context, name, description string, expiryDays int) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("memory: name must not be empty")
	}

	id, ok, err := m.findMemory(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		m.log.Info("memory already exists", "name", name, "id", id)
		return id, nil
	}

	if expiryDays <= 0 {
		expiryDays = 30
	}
	out, err := m.api.CreateMemory(ctx, &bedrockagentcorecontrol.CreateMemoryInput{
		Name:                aws.String(name),
		Description:         aws.String(description),
		EventExpiryDuration: aws.Int32(int32(expiryDays)),
	})
	if err != nil {
		return "", fmt.Errorf("memory: create memory %q: %w", name, err)
	}
	if out.Memory == nil || out.Memory.Id == nil {
		return "", errors.New("memory: create memory returned no id")
	}
	id = aws.ToString(out.Memory.Id)
	m.log.Info("memory created, waiting for activation", "name", name, "id", id)

	if err := m.waitActive(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) findMemory(ctx context.Context, name string) (string, bool, error) {
	prefix := name + "-"
	var next *string
	for {
		out, err := m.api.ListMemories(ctx, &bedrockagentcorecontrol.ListMemoriesInput{
			MaxResults: aws.Int32(50),
			NextToken:  next,
		})
		if err != nil {
			return "", false, fmt.Errorf("memory: list memories: %w", err)
		}
		for _, item := range out.Memories {
			id := aws.ToString(item.Id)
			if strings.HasPrefix(id, prefix) {
				return id, true, nil
			}
		}
		if out.NextToken == nil {
			return "", false, nil
		}
		next = out.NextToken
	}
}

// waitActive polls until the store leaves CREATING. Activation can take a
// couple of minutes on first provisioning.
func (m *Manager) waitActive(ctx context.Context, id string) error {
	for attempt := 1; attempt <= memoryPollAttempts; attempt++ {
		out, err := m.api.GetMemory(ctx, &bedrockagentcorecontrol.GetMemoryInput{
			MemoryId: aws.String(id),
		})
		if err != nil {
			return fmt.Errorf("memory: get memory %q: %w", id, err)
		}
		if out.Memory != nil {
			switch out.Memory.Status {
			case controltypes.MemoryStatusActive:
				return nil
			case controltypes.MemoryStatusFailed:
				return fmt.Errorf("memory: memory %q entered FAILED state", id)
			}
		}
		sleep(memoryPollDelay)
	}
	return domain.NewError(domain.ErrorTransient, "memory_activation_timeout",
		fmt.Errorf("memory: memory %q did not become active", id))
}

// DeleteMemory removes the store. Absence is logged and tolerated.
func (m *Manager) DeleteMemory(ctx context.Context, id string) error {
	if _, err := m.api.DeleteMemory(ctx, &bedrockagentcorecontrol.DeleteMemoryInput{
		MemoryId: aws.String(id),
	}); err != nil {
		if isNotFoundClass(err) {
			m.log.Warn("memory not found, skipping deletion", "id", id)
			return nil
		}
		return fmt.Errorf("memory: delete memory %q: %w", id, err)
	}
	m.log.Info("memory deleted", "id", id)
	return nil
}
