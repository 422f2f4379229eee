package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	opts     pgx.TxOptions
}

func (f *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.opts = opts
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(context.Background(), b, func(context.Context, DBTX) error { return nil })
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !b.tx.committed || b.tx.rolledBack {
		t.Fatalf("expected commit only, got commit=%v rollback=%v", b.tx.committed, b.tx.rolledBack)
	}
	if b.opts.IsoLevel != pgx.ReadCommitted {
		t.Fatalf("expected read committed, got %v", b.opts.IsoLevel)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	want := errors.New("boom")
	err := WithTx(context.Background(), b, func(context.Context, DBTX) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if b.tx.committed || !b.tx.rolledBack {
		t.Fatalf("expected rollback only")
	}
}

func TestWithTx_ReturnsCommitError(t *testing.T) {
	want := errors.New("commit failed")
	b := &fakeBeginner{tx: &fakeTx{commitErr: want}}
	err := WithTx(context.Background(), b, func(context.Context, DBTX) error { return nil })
	if !errors.Is(err, want) {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestWithTx_BeginError(t *testing.T) {
	want := errors.New("no conn")
	b := &fakeBeginner{beginErr: want}
	called := false
	err := WithTx(context.Background(), b, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	if !errors.Is(err, want) || called {
		t.Fatalf("expected begin error without calling fn, got %v called=%v", err, called)
	}
}

func TestWithTx_RethrowsPanic(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic to propagate")
		}
		if !b.tx.rolledBack {
			t.Fatalf("expected rollback on panic")
		}
	}()
	_ = WithTx(context.Background(), b, func(context.Context, DBTX) error { panic("bad") })
}
