package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
	"github.com/Baleenmedia2512/recordingapp--ramesh/config"
	"github.com/Baleenmedia2512/recordingapp--ramesh/lms"
	"github.com/Baleenmedia2512/recordingapp--ramesh/network"
	"github.com/Baleenmedia2512/recordingapp--ramesh/queue"
	"github.com/Baleenmedia2512/recordingapp--ramesh/recordings"
	"github.com/Baleenmedia2512/recordingapp--ramesh/storage"
	"github.com/Baleenmedia2512/recordingapp--ramesh/uploading"
	"github.com/Baleenmedia2512/recordingapp--ramesh/web"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Save the config in case it was not found or updated
	if err := cfg.SaveConfig(*configPath); err != nil {
		log.Printf("Failed to save configuration: %v", err)
	}

	logger := logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogPath, "upload-agent")
	logger.Info("Starting call recording upload agent")

	database, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	repo, err := queue.NewSQLiteUploadRepository(database, logger)
	if err != nil {
		log.Fatalf("Failed to create upload repository: %v", err)
	}

	// Storage client, with the DoH dialer when platform DNS is unreliable
	var httpClient *http.Client
	if cfg.DoHFallback {
		httpClient = storage.NewDoHFallbackHTTPClient(30*time.Second, logger)
	}
	bucketClient := storage.NewSupabaseClient(cfg.StorageURL, cfg.StorageBucket, cfg.StorageAPIKey, 30*time.Second, httpClient)
	checker := storage.NewBucketExistenceChecker(bucketClient, cfg.StorageFolder, logger)
	uploader := uploading.NewBucketUploader(bucketClient, cfg.StorageFolder, logger)

	notifier := lms.NopNotifier
	if cfg.LMSEnabled {
		notifier = lms.NewHTTPNotifier(cfg.LMSBaseURL, cfg.LMSAPIKey, 15*time.Second, logger)
	}

	settings := uploading.DefaultManagerSettings()
	settings.RetryInterval = time.Duration(cfg.RetryIntervalMinutes) * time.Minute
	settings.RetentionDays = cfg.RetentionDays

	manager := uploading.NewQueueManager(settings, repo, uploader, checker, notifier, nil, logger)

	probe := recordings.MetadataProbe(recordings.NewFFmpegMetadataProbe(logger))
	watcher := recordings.NewDirectoryWatcher(
		cfg.RecordingsDir,
		time.Duration(cfg.WatchIntervalSeconds)*time.Second,
		repo,
		probe,
		logger,
	)

	monitor := network.NewMonitor(
		network.HTTPProbe(cfg.StorageURL),
		time.Duration(cfg.ProbeIntervalSeconds)*time.Second,
		manager.TriggerRetry,
		logger,
	)

	webServer := web.NewServer(cfg.WebAddr, cfg.WebPort, cfg.APIKey, cfg.LogLevel == "debug", manager, repo, logger)

	agent := NewUploadAgent(manager, watcher, monitor, webServer, logger)
	if err := agent.Start(); err != nil {
		log.Fatalf("Failed to start upload agent: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	agent.Stop()
}
