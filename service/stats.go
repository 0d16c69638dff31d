package service

import (
	"context"
	"math"
	"sort"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/repository"
)

type StatsService interface {
	Leaderboard(ctx context.Context) ([]entities.ModelStats, error)
}

type statsService struct {
	repo repository.VideoRepository
}

func NewStatsService(repo repository.VideoRepository) StatsService {
	return &statsService{repo: repo}
}

func (s *statsService) Leaderboard(ctx context.Context) ([]entities.ModelStats, error) {
	facts, err := s.repo.ListPredictionFacts(ctx)
	if err != nil {
		return nil, err
	}
	return AggregateStats(facts), nil
}

// AggregateStats derives per-model counts, accuracy (one decimal place) and
// mean response time from prediction facts, ordered by accuracy descending.
func AggregateStats(facts []repository.PredictionFact) []entities.ModelStats {
	type accumulator struct {
		total   int
		correct int
		latency int64
	}

	byModel := make(map[string]*accumulator)
	for _, fact := range facts {
		acc, ok := byModel[fact.ModelName]
		if !ok {
			acc = &accumulator{}
			byModel[fact.ModelName] = acc
		}
		acc.total++
		if fact.Prediction == constant.LabelFromAccepted(fact.Accepted) {
			acc.correct++
		}
		acc.latency += fact.ResponseTimeMs
	}

	stats := make([]entities.ModelStats, 0, len(byModel))
	for model, acc := range byModel {
		stats = append(stats, entities.ModelStats{
			ModelName:          model,
			TotalPredictions:   acc.total,
			CorrectPredictions: acc.correct,
			Accuracy:           round1(float64(acc.correct) / float64(acc.total) * 100),
			AvgResponseTime:    round1(float64(acc.latency) / float64(acc.total)),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Accuracy != stats[j].Accuracy {
			return stats[i].Accuracy > stats[j].Accuracy
		}
		return stats[i].ModelName < stats[j].ModelName
	})

	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
