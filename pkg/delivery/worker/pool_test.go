package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/delivery/worker"
)

var _ = Describe("Pool", func() {
	It("runs every queued job before Close returns", func() {
		wp, err := worker.NewPool(&worker.Config{NumWorkers: 2})
		Expect(err).NotTo(HaveOccurred())

		var (
			mu   sync.Mutex
			seen []string
		)
		for _, id := range []string{"a", "b", "c", "d"} {
			Expect(wp.Enqueue(worker.Job{SessionID: id, Run: func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, id)
				return nil
			}})).To(BeTrue())
		}

		wp.Close()
		Expect(seen).To(ConsistOf("a", "b", "c", "d"))
	})

	It("drops jobs when the queue is full", func() {
		wp, err := worker.NewPool(&worker.Config{NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		release := make(chan struct{})
		started := make(chan struct{})
		blocker := worker.Job{SessionID: "blocker", Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		}}

		Expect(wp.Enqueue(blocker)).To(BeTrue())
		Eventually(started).Should(BeClosed())

		Expect(wp.Enqueue(worker.Job{SessionID: "queued"})).To(BeTrue())
		Expect(wp.Enqueue(worker.Job{SessionID: "dropped"})).To(BeFalse())

		close(release)
		wp.Close()
	})

	It("rejects jobs after Close and tolerates a second Close", func() {
		wp, err := worker.NewPool(nil)
		Expect(err).NotTo(HaveOccurred())

		wp.Close()
		Expect(wp.Enqueue(worker.Job{SessionID: "late"})).To(BeFalse())
		wp.Close()
	})

	It("keeps working after a job fails or panics", func() {
		wp, err := worker.NewPool(&worker.Config{NumWorkers: 1})
		Expect(err).NotTo(HaveOccurred())

		var ran atomic.Int32
		wp.Enqueue(worker.Job{SessionID: "err", Run: func(context.Context) error { return errors.New("boom") }})
		wp.Enqueue(worker.Job{SessionID: "panic", Run: func(context.Context) error { panic("boom") }})
		wp.Enqueue(worker.Job{SessionID: "ok", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}})

		wp.Close()
		Expect(ran.Load()).To(Equal(int32(1)))
	})

	It("gives each job a deadline", func() {
		wp, err := worker.NewPool(&worker.Config{NumWorkers: 1})
		Expect(err).NotTo(HaveOccurred())

		var hasDeadline atomic.Bool
		wp.Enqueue(worker.Job{SessionID: "s", Run: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			hasDeadline.Store(ok)
			return nil
		}})

		wp.Close()
		Expect(hasDeadline.Load()).To(BeTrue())
	})
})
