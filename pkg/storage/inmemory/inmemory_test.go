package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/storage/inmemory"
	"github.com/papercomputeco/voxtap/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies that do not alias stored entries", func() {
		d := inmemory.NewDriver()
		ctx := context.Background()
		Expect(d.Put(ctx, storagetest.NewEntry("call-1", "agent-a", storage.StatusFailed, time.Now()))).To(Succeed())

		got, err := d.Get(ctx, "call-1")
		Expect(err).NotTo(HaveOccurred())
		got.Status = storage.StatusDelivered

		again, err := d.Get(ctx, "call-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Status).To(Equal(storage.StatusFailed))
	})
})
