package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_file_status_transitions_total",
		Help: "Applied file record status changes.",
	}, []string{"from", "to"})

	statusRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_file_status_rejections_total",
		Help: "Status changes rejected before reaching the metadata store.",
	}, []string{"reason"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_uploads_total",
		Help: "Object store uploads by result.",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizdir_upload_bytes_total",
		Help: "Bytes written to the object store.",
	})
)
