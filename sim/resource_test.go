package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResourcePool", func() {
	var engine *Engine

	BeforeEach(func() {
		engine = NewEngine()
	})

	AfterEach(func() {
		engine.Close()
	})

	It("should reject zero capacity", func() {
		_, err := NewResourcePool(engine, "servers", 0)

		Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())
	})

	It("should grant immediately while capacity is free", func() {
		pool, _ := NewResourcePool(engine, "servers", 2)
		var grantedAt []float64
		for i := 0; i < 2; i++ {
			_, _ = engine.Spawn("p", func(p *Process) error {
				if _, err := pool.Request(p); err != nil {
					return err
				}
				grantedAt = append(grantedAt, p.Now())
				return nil
			})
		}

		Expect(engine.Run(1)).To(Succeed())
		Expect(grantedAt).To(Equal([]float64{0, 0}))
		Expect(pool.Occupied()).To(Equal(2))
		Expect(pool.QueueLength()).To(Equal(0))
	})

	It("should grant waiting requests in FIFO order at release time", func() {
		pool, _ := NewResourcePool(engine, "servers", 1)
		type grant struct {
			id int
			at float64
		}
		var grants []grant
		for i := 1; i <= 4; i++ {
			id := i
			_, _ = engine.Spawn("p", func(p *Process) error {
				u, err := pool.Request(p)
				if err != nil {
					return err
				}
				grants = append(grants, grant{id: id, at: p.Now()})
				if err := p.Timeout(1.5); err != nil {
					return err
				}
				return pool.Release(u)
			})
		}

		Expect(engine.Run(0)).To(Succeed())
		Expect(pool.QueueLength()).To(Equal(3))
		Expect(pool.NumberInSystem()).To(Equal(4))

		Expect(engine.Run(100)).To(Succeed())
		Expect(grants).To(Equal([]grant{{1, 0}, {2, 1.5}, {3, 3}, {4, 4.5}}))
		Expect(pool.Occupied()).To(Equal(0))
	})

	It("should never exceed capacity", func() {
		pool, _ := NewResourcePool(engine, "servers", 3)
		violations := 0
		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			if pool.Occupied() < 0 || pool.Occupied() > pool.Capacity() {
				violations++
			}
			if pool.QueueLength() > 0 && pool.Occupied() != pool.Capacity() {
				violations++
			}
		}))
		for i := 0; i < 20; i++ {
			delay := float64(i%7) * 0.5
			hold := float64(i%5) + 1
			_, _ = engine.Spawn("p", func(p *Process) error {
				if err := p.Timeout(delay); err != nil {
					return err
				}
				u, err := pool.Request(p)
				if err != nil {
					return err
				}
				if err := p.Timeout(hold); err != nil {
					return err
				}
				return pool.Release(u)
			})
		}

		Expect(engine.Run(1000)).To(Succeed())
		Expect(violations).To(Equal(0))
		Expect(engine.Live()).To(Equal(0))
	})

	It("should reject releasing a unit twice", func() {
		pool, _ := NewResourcePool(engine, "servers", 1)
		var second error
		_, _ = engine.Spawn("p", func(p *Process) error {
			u, err := pool.Request(p)
			if err != nil {
				return err
			}
			if err := pool.Release(u); err != nil {
				return err
			}
			second = pool.Release(u)
			return nil
		})

		Expect(engine.Run(1)).To(Succeed())
		Expect(errors.Is(second, ErrInvalidRelease)).To(BeTrue())
		Expect(pool.Occupied()).To(Equal(0))
	})

	It("should reject a unit from another pool", func() {
		a, _ := NewResourcePool(engine, "a", 1)
		b, _ := NewResourcePool(engine, "b", 1)
		var wrong error
		_, _ = engine.Spawn("p", func(p *Process) error {
			u, err := a.Request(p)
			if err != nil {
				return err
			}
			wrong = b.Release(u)
			return a.Release(u)
		})

		Expect(engine.Run(1)).To(Succeed())
		Expect(errors.Is(wrong, ErrInvalidRelease)).To(BeTrue())
	})

	It("should reject requests from a process that is not running", func() {
		pool, _ := NewResourcePool(engine, "servers", 1)
		p, _ := engine.Spawn("idle", func(p *Process) error { return nil })

		_, err := pool.Request(p)

		Expect(errors.Is(err, ErrProcessNotRunning)).To(BeTrue())
	})
})
