package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var promAMRatio = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "avxturbo_am_ratio",
		Help: "APERF delta over MPERF delta for the last sample interval",
	},
	[]string{"cpu"},
)
var promEffectiveMHz = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "avxturbo_effective_mhz",
		Help: "Effective core frequency in MHz for the last sample interval",
	},
	[]string{"cpu"},
)
var promUnhaltedRatio = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "avxturbo_unhalted_ratio",
		Help: "Fraction of the last sample interval the core spent unhalted",
	},
	[]string{"cpu"},
)

func startPrometheusServer(listenAddr string) {
	prometheus.MustRegister(promAMRatio, promEffectiveMHz, promUnhaltedRatio)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("Starting Prometheus metrics server", slog.String("address", listenAddr))
	go func() {
		server := &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 3 * time.Second,
		}
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Prometheus HTTP server ListenAndServe error", slog.String("error", err.Error()))
		}
	}()
}

func updatePrometheusMetrics(s sample) {
	cpu := strconv.Itoa(s.cpu)
	promAMRatio.WithLabelValues(cpu).Set(s.amRatio)
	promEffectiveMHz.WithLabelValues(cpu).Set(s.effectiveMHz)
	promUnhaltedRatio.WithLabelValues(cpu).Set(s.mtscRatio)
}
