package workers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/services"
	"github.com/yoockh/interviewx/internal/utils"
)

const (
	DefaultStream = "evaluation:stream"
	DefaultGroup  = "evaluation-workers"
)

// EvaluationWorkerPool consumes submitted evaluation ids from a Redis stream
// and runs the orchestrator on each of them.
type EvaluationWorkerPool struct {
	Redis        *redis.Client
	Orchestrator services.Orchestrator
	NumWorkers   int

	// ProcessTimeout bounds a single orchestration run. Zero means no bound.
	ProcessTimeout time.Duration

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *EvaluationWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Orchestrator == nil {
		return errors.New("EvaluationWorkerPool missing dependency: Redis/Orchestrator must be set")
	}
	p.defaults()

	if err := p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err(); err != nil && !isBusyGroup(err) {
		return err
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("evaluation workers started")
	return nil
}

func (p *EvaluationWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (p *EvaluationWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				// Unfinished work is picked up again by the stale sweeper,
				// so every delivered message is acknowledged.
				_ = p.Redis.XAck(context.WithoutCancel(ctx), p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *EvaluationWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	id, _ := msg.Values[fieldEvaluationID].(string)
	if id == "" {
		p.Logger.WithField("redis_id", msg.ID).Warn("stream message without evaluation id")
		return
	}
	log := p.Logger.WithFields(logrus.Fields{"redis_id": msg.ID, "evaluation_id": id})

	if p.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ProcessTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.Orchestrator.Process(ctx, id)
	switch {
	case err == nil:
		log.WithField("took_ms", time.Since(start).Milliseconds()).Debug("evaluation processed")
	case utils.IsCode(err, utils.CodeInvalidState), utils.IsCode(err, utils.CodeNotFound):
		// stale message: the evaluation moved on or was deleted
		log.WithError(err).Debug("evaluation skipped")
	default:
		log.WithError(err).Error("evaluation processing failed")
	}
}
