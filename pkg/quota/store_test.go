package quota_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/formu/pkg/quota"
)

var pro = quota.Snapshot{
	Used:      3,
	Remaining: quota.Limited(7),
	CanUse:    true,
	PlanName:  "Pro",
	PlanColor: "#ff6600",
	UserType:  "pro",
	MaxUsage:  quota.Limited(10),
}

var admin = quota.Snapshot{
	Used:      120,
	Remaining: quota.Unlimited(),
	CanUse:    true,
	PlanName:  "Admin",
	PlanColor: "#00aa00",
	UserType:  "admin",
	MaxUsage:  quota.Unlimited(),
}

// recorder collects published snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []quota.Snapshot
}

func (r *recorder) listen(s quota.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []quota.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]quota.Snapshot(nil), r.snaps...)
}

func fixed(s quota.Snapshot) quota.FetchFunc {
	return func(context.Context) (quota.Snapshot, error) { return s, nil }
}

var _ = Describe("Store", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("starts logged out", func() {
		store := quota.NewStore(fixed(pro))
		Expect(store.Snapshot()).To(Equal(quota.LoggedOut()))
		Expect(store.Snapshot().IsLoggedOut()).To(BeTrue())
	})

	It("replaces the snapshot and notifies every subscriber before Refresh returns", func() {
		store := quota.NewStore(fixed(pro))
		var a, b recorder
		store.Subscribe(a.listen)
		store.Subscribe(b.listen)

		Expect(store.Refresh(ctx)).To(Equal(pro))

		Expect(store.Snapshot()).To(Equal(pro))
		Expect(a.all()).To(Equal([]quota.Snapshot{pro}))
		Expect(b.all()).To(Equal([]quota.Snapshot{pro}))
	})

	It("replaces wholesale rather than merging", func() {
		current := pro
		store := quota.NewStore(func(context.Context) (quota.Snapshot, error) { return current, nil })
		store.Refresh(ctx)

		current = quota.Snapshot{Used: 1, Remaining: quota.Limited(0), PlanName: "Free"}
		store.Refresh(ctx)

		Expect(store.Snapshot()).To(Equal(current))
		Expect(store.Snapshot().PlanColor).To(BeEmpty())
	})

	It("calls listeners in subscription order", func() {
		store := quota.NewStore(fixed(pro))
		var order []int
		for i := range 5 {
			store.Subscribe(func(quota.Snapshot) { order = append(order, i) })
		}

		store.Refresh(ctx)
		Expect(order).To(Equal([]int{0, 1, 2, 3, 4}))
	})

	It("degrades to logged out on failure and still notifies", func() {
		calls := 0
		store := quota.NewStore(func(context.Context) (quota.Snapshot, error) {
			calls++
			if calls == 1 {
				return pro, nil
			}
			return quota.Snapshot{}, errors.New("401 unauthorized")
		})
		var r recorder
		store.Subscribe(r.listen)

		store.Refresh(ctx)
		Expect(store.Refresh(ctx)).To(Equal(quota.LoggedOut()))

		Expect(store.Snapshot()).To(Equal(quota.LoggedOut()))
		Expect(r.all()).To(Equal([]quota.Snapshot{pro, quota.LoggedOut()}))
	})

	It("treats a missing fetch function as logged out", func() {
		store := quota.NewStore(nil)
		Expect(store.Refresh(ctx)).To(Equal(quota.LoggedOut()))
	})

	It("keeps unlimited distinct from zero", func() {
		store := quota.NewStore(fixed(admin))
		snap := store.Refresh(ctx)

		Expect(snap.Remaining.IsUnlimited()).To(BeTrue())
		_, bounded := snap.Remaining.Count()
		Expect(bounded).To(BeFalse())
		Expect(snap.Remaining).NotTo(Equal(quota.Limited(0)))
	})

	Describe("Reset", func() {
		It("publishes logged out regardless of prior state", func() {
			store := quota.NewStore(fixed(admin))
			var r recorder
			store.Subscribe(r.listen)
			store.Refresh(ctx)

			store.Reset()

			snap := store.Snapshot()
			Expect(snap.Remaining).To(Equal(quota.Limited(0)))
			Expect(snap.CanUse).To(BeFalse())
			Expect(snap.PlanName).To(Equal(quota.LoggedOutPlanName))
			Expect(snap.PlanColor).To(Equal(quota.LoggedOutPlanColor))
			Expect(r.all()).To(Equal([]quota.Snapshot{admin, quota.LoggedOut()}))
		})
	})

	Describe("Subscribe", func() {
		It("stops delivering after unsubscribe and tolerates a double unsubscribe", func() {
			store := quota.NewStore(fixed(pro))
			var r recorder
			unsubscribe := store.Subscribe(r.listen)

			store.Refresh(ctx)
			unsubscribe()
			unsubscribe()
			store.Reset()

			Expect(r.all()).To(Equal([]quota.Snapshot{pro}))
		})

		It("allows a listener to unsubscribe itself", func() {
			store := quota.NewStore(fixed(pro))
			var calls atomic.Int32
			var unsubscribe func()
			unsubscribe = store.Subscribe(func(quota.Snapshot) {
				calls.Add(1)
				unsubscribe()
			})

			store.Refresh(ctx)
			store.Refresh(ctx)
			Expect(calls.Load()).To(BeEquivalentTo(1))
		})

		It("does not deliver to listeners added during a publication", func() {
			store := quota.NewStore(fixed(pro))
			var late recorder
			store.Subscribe(func(quota.Snapshot) {
				store.Subscribe(late.listen)
			})

			store.Refresh(ctx)
			Expect(late.all()).To(BeEmpty())
		})
	})

	It("applies whichever overlapping refresh resolves last", func() {
		first := make(chan struct{})
		second := make(chan struct{})
		var calls atomic.Int32

		store := quota.NewStore(func(context.Context) (quota.Snapshot, error) {
			if calls.Add(1) == 1 {
				<-first
				return pro, nil
			}
			<-second
			return admin, nil
		})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Refresh(ctx)
		}()
		Eventually(calls.Load).Should(BeEquivalentTo(1))

		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Refresh(ctx)
		}()
		Eventually(calls.Load).Should(BeEquivalentTo(2))

		close(second)
		Eventually(store.Snapshot).Should(Equal(admin))
		close(first)
		wg.Wait()

		Expect(store.Snapshot()).To(Equal(pro))
	})
})
