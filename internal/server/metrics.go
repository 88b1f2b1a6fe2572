package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quizzesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_engine_quizzes_started_total",
		Help: "Quizzes started, labeled by selection mode.",
	}, []string{"mode"})

	answersRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_engine_answers_recorded_total",
		Help: "Answer events appended to quiz sessions.",
	})

	quizzesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_engine_quizzes_finished_total",
		Help: "Finished quizzes handed to the stats worker.",
	})
)
