package server

import (
	"context"
	"fmt"

	"github.com/kbukum/runemaster/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component runs a Server under the component registry.
type Component struct {
	server  *Server
	started bool
}

// NewComponent wraps s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Server returns the wrapped server.
func (c *Component) Server() *Server { return c.server }

func (c *Component) Name() string { return componentName }

func (c *Component) Start(ctx context.Context) error {
	if err := c.server.Start(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	if !c.started {
		return nil
	}
	c.started = false
	return c.server.Stop(ctx)
}

func (c *Component) Health(_ context.Context) component.Health {
	if !c.started {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("addr=%s routes=%d", c.server.Addr(), len(c.server.engine.Routes())),
	}
}
