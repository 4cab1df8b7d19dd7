package service

import (
	"errors"
	"fmt"

	"github.com/d60-Lab/fansync/internal/upstream"
)

var (
	// ErrNoAccount 没有已连接账号；各入口将其视为静默跳过
	ErrNoAccount = errors.New("no connected account")

	ErrUpstreamUnavailable = upstream.ErrUnavailable
	ErrDatastore           = errors.New("datastore error")
	ErrGeneration          = errors.New("generation failure")
)

func upstreamErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDatastore, op, err)
}

func genErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGeneration, op, err)
}
