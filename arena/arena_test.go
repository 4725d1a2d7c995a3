package arena_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coreruntime/kernel/arena"
)

var _ = Describe("Arena", func() {
	It("allocates and releases single values", func() {
		a := arena.New[int]()
		h := a.Allocate(42)
		Expect(*h.Get()).To(Equal(42))
		Expect(a.LiveCount()).To(BeNumerically(">", 0))
		h.Release()
	})

	It("supports clone with independent release", func() {
		a := arena.New[string]()
		h1 := a.Allocate("hello")
		h2 := h1.Clone()
		h1.Release()
		Expect(*h2.Get()).To(Equal("hello"))
		h2.Release()
	})

	It("fails to upgrade a weak handle after the last owner released", func() {
		a := arena.New[int]()
		h := a.Allocate(7)
		w := h.Weak()
		h.Release()
		_, ok := w.Upgrade()
		Expect(ok).To(BeFalse())
	})

	It("upgrades a weak handle while an owner is still alive", func() {
		a := arena.New[int]()
		h := a.Allocate(7)
		w := h.Weak()
		h2, ok := w.Upgrade()
		Expect(ok).To(BeTrue())
		Expect(*h2.Get()).To(Equal(7))
		h.Release()
		h2.Release()
	})

	It("supports the two-phase reserve/complete protocol", func() {
		a := arena.New[int]()
		r := a.Reserve()
		h := r.Complete(100)
		Expect(*h.Get()).To(Equal(100))
		h.Release()
	})

	It("allows forgetting a reservation without completing it", func() {
		a := arena.New[int]()
		r := a.Reserve()
		r.Forget()
	})

	It("tolerates dropping the arena while handles are still live", func() {
		a := arena.New[int]()
		h := a.Allocate(1)
		a.Drop()
		Expect(*h.Get()).To(Equal(1))
		h.Release()
	})
})
