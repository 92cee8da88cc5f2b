package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tasks"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), tasks.NewStore())
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestServeStdio_StopsAtEOF(t *testing.T) {
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- serveStdio(context.Background(), newMCPServer(), strings.NewReader(""), &out)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveStdio() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveStdio() did not return at end of input")
	}
}

func TestRegisterAllTools_ReadOnly(t *testing.T) {
	for _, readOnly := range []bool{true, false} {
		sc := newTestServerContext(t)
		mcpSrv := newMCPServer()
		if err := registerAllTools(mcpSrv, sc, readOnly); err != nil {
			t.Fatalf("registerAllTools(readOnly=%v) error = %v", readOnly, err)
		}

		tools := mcpSrv.ListTools()
		_, hasDelete := tools["goals_delete"]
		if _, ok := tools["goals_list"]; !ok {
			t.Errorf("readOnly=%v: goals_list is not registered", readOnly)
		}
		if hasDelete == readOnly {
			t.Errorf("readOnly=%v: goals_delete registered = %v", readOnly, hasDelete)
		}
	}
}
