package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airwaycast/airwaycast/internal/config"
)

func TestNewServer(t *testing.T) {
	cfg := config.Default().Server
	handler := http.NotFoundHandler()

	server := newServer(cfg, handler)

	assert.Equal(t, ":8080", server.Addr)
	assert.Equal(t, 15*time.Second, server.ReadTimeout)
	assert.Equal(t, 30*time.Second, server.WriteTimeout)
	assert.Equal(t, 60*time.Second, server.IdleTimeout)
	assert.NotNil(t, server.Handler)
}
