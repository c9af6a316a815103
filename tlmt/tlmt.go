// Package tlmt sends product analytics events
package tlmt

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

const (
	EventInterestCreated  = "interest_created"
	EventPropertyCreated  = "property_created"
	EventPropertyApproved = "property_approved"
)

var (
	once       sync.Once
	identifier machineIdentifier
)

type Event struct {
	DistinctID string
	Name       string
	Properties map[string]any
}

// NewEvent builds an event attributed to distinctID, or to this machine
// when distinctID is empty. Host facts are merged into the properties.
func NewEvent(distinctID, name string, props map[string]any) Event {
	machine := generateMachineID()

	if distinctID == "" {
		distinctID = machine.id
	}

	ev := Event{
		DistinctID: distinctID,
		Name:       name,
		Properties: make(map[string]any, len(machine.meta)+len(props)),
	}

	for k, v := range machine.meta {
		ev.Properties[k] = v
	}

	for k, v := range props {
		ev.Properties[k] = v
	}

	return ev
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type machineIdentifier struct {
	id   string
	meta map[string]any
}

func generateMachineID() machineIdentifier {
	once.Do(func() {
		seed := ""
		meta := make(map[string]any)

		info, err := host.Info()
		if err == nil {
			seed = info.HostID
			meta["os"] = info.OS
			meta["platform"] = info.Platform
			meta["platform_family"] = info.PlatformFamily
			meta["platform_version"] = info.PlatformVersion
		}

		if seed == "" {
			seed, _ = os.Hostname()
		}

		if seed == "" {
			seed = uuid.NewString()
		}

		hash := sha256.New()
		hash.Write([]byte(seed))
		hash.Write([]byte(runtime.GOARCH))
		hash.Write([]byte(runtime.GOOS))

		identifier.id = fmt.Sprintf("%x", hash.Sum(nil))
		identifier.meta = meta
	})

	return identifier
}
