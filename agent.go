package main

import (
	"fmt"
	"sync"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/network"
	"github.com/Baleenmedia2512/recordingapp--ramesh/recordings"
	"github.com/Baleenmedia2512/recordingapp--ramesh/uploading"
	"github.com/Baleenmedia2512/recordingapp--ramesh/web"
)

// UploadAgent orchestrates recording detection, queue processing,
// connectivity monitoring and the status API
type UploadAgent struct {
	manager   uploading.QueueManager
	watcher   recordings.Watcher
	monitor   network.Monitor
	webServer *web.Server
	logger    logging.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewUploadAgent creates a new upload agent with injected dependencies
func NewUploadAgent(
	manager uploading.QueueManager,
	watcher recordings.Watcher,
	monitor network.Monitor,
	webServer *web.Server,
	logger logging.Logger,
) *UploadAgent {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &UploadAgent{
		manager:   manager,
		watcher:   watcher,
		monitor:   monitor,
		webServer: webServer,
		logger:    logger,
	}
}

// Start brings up all components
func (a *UploadAgent) Start() error {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return fmt.Errorf("upload agent is already running")
	}
	a.isRunning = true
	a.mu.Unlock()

	a.logger.Info("Starting upload agent")

	if err := a.watcher.Start(); err != nil {
		a.mu.Lock()
		a.isRunning = false
		a.mu.Unlock()
		return fmt.Errorf("failed to start recording watcher: %w", err)
	}

	a.manager.Start()
	a.monitor.Start()
	a.webServer.Start()

	a.logger.Info("Upload agent started")
	return nil
}

// Stop shuts all components down, letting an in-flight upload pass finish
func (a *UploadAgent) Stop() {
	a.mu.Lock()
	if !a.isRunning {
		a.mu.Unlock()
		return
	}
	a.isRunning = false
	a.mu.Unlock()

	a.logger.Info("Stopping upload agent")

	a.webServer.Stop()
	a.monitor.Stop()
	a.watcher.Stop()
	a.manager.Stop()

	a.logger.Info("Upload agent stopped")
}
