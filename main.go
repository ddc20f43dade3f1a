// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/api"
	"github.com/cobaltcore-dev/mirror/internal/conf"
	"github.com/cobaltcore-dev/mirror/internal/db"
	"github.com/cobaltcore-dev/mirror/internal/follower"
	"github.com/cobaltcore-dev/mirror/internal/monitoring"
	"github.com/cobaltcore-dev/mirror/internal/mqtt"
	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/cobaltcore-dev/mirror/internal/tasks"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/must"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		// If called with `--version`, report version and exit (the Dockerfile
		// uses this to check if the binary was built correctly)
		bininfo.HandleVersionArgument()
	}

	config := conf.GetConfigOrDie[*conf.Config]()
	config.LoggingConfig.SetDefaultLogger()
	must.Succeed(config.Validate())

	// Set runtime concurrency to match CPU limit imposed by Kubernetes
	undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(slog.Debug))
	if err != nil {
		panic(err)
	}
	defer undoMaxprocs()

	// Override User-Agent header for all requests made by this process
	// (logs will show e.g. "mirror/d0c9faa" instead of "Go-http-client/2.0")
	wrap := httpext.WrapTransport(&http.DefaultTransport)
	wrap.SetOverrideUserAgent(bininfo.Component(), bininfo.VersionOr("rolling"))

	// This context will gracefully shutdown when the process receives the
	// standard shutdown signal SIGINT, with a 10-second delay to allow
	// Kubernetes to stop sending new requests well before the process starts
	// to shut down.
	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)

	registry := monitoring.NewRegistry(config.MonitoringConfig)

	dbMonitor := db.NewDBMonitor(registry)
	database := db.NewPostgresDB(ctx, config.DBConfig, registry, dbMonitor)
	defer database.Close()
	go database.CheckLivenessPeriodically(ctx)
	go registry.Serve(ctx)

	store := project.NewStore(database)
	must.Succeed(store.Init())

	mqttClient := mqtt.NewClient(config.MQTTConfig, mqtt.NewMQTTMonitor(registry))
	if err := mqttClient.Connect(); err != nil {
		panic("failed to connect to mqtt broker: " + err.Error())
	}
	defer mqttClient.Disconnect()

	leaderClient := must.Return(follower.NewLeaderClient(config.ProjectsConfig, registry))
	member := follower.NewMember(
		config.ProjectsConfig,
		store,
		leaderClient,
		tasks.NewRegistry(),
		mqttClient,
		follower.NewSyncMonitor(registry),
	)
	must.Succeed(member.Initialize(ctx))
	defer member.Shutdown()

	apiServer := api.NewAPI(config.APIConfig, member, api.NewAPIMonitor(registry))
	apiServer.Init(ctx)
}
