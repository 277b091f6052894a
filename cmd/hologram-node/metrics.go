package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	projectionsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hologram_projections_built_total",
		Help: "Projections built, by representation kind.",
	}, []string{"kind"})

	shardsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hologram_shards_extracted_total",
		Help: "Shards extracted and archived.",
	})

	shardsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hologram_shards_served_total",
		Help: "Archived shards served to pull requests.",
	})

	reconstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hologram_reconstructions_total",
		Help: "Reconstruction finalizations, by result.",
	}, []string{"result"})

	conservationViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hologram_conservation_violations_total",
		Help: "Operations rejected for violating the mod-96 conservation invariant.",
	})
)
