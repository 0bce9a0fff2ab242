package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Engine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *Engine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewEngine()
	})

	AfterEach(func() {
		engine.Close()
		mockCtrl.Finish()
	})

	It("should dispatch events in time order", func() {
		var order []string
		for _, tc := range []struct {
			name string
			at   float64
		}{{"c", 3}, {"a", 1}, {"b", 2}} {
			tc := tc
			_, err := engine.Spawn(tc.name, func(p *Process) error {
				if err := p.WaitUntil(tc.at); err != nil {
					return err
				}
				order = append(order, tc.name)
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(engine.Run(10)).To(Succeed())
		Expect(order).To(Equal([]string{"a", "b", "c"}))
	})

	It("should keep insertion order for simultaneous events", func() {
		var order []string
		names := []string{"first", "second", "third", "fourth"}
		for _, name := range names {
			name := name
			_, err := engine.Spawn(name, func(p *Process) error {
				if err := p.Timeout(5); err != nil {
					return err
				}
				order = append(order, name)
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(engine.Run(5)).To(Succeed())
		Expect(order).To(Equal(names))
	})

	It("should reject scheduling in the past", func() {
		Expect(engine.Run(10)).To(Succeed())

		err := engine.ScheduleAt(5, nil, nil)

		Expect(errors.Is(err, ErrInvalidTime)).To(BeTrue())
		Expect(engine.Pending()).To(Equal(0))
	})

	It("should reject negative timeouts", func() {
		var timeoutErr error
		_, _ = engine.Spawn("p", func(p *Process) error {
			timeoutErr = p.Timeout(-1)
			return nil
		})

		Expect(engine.Run(1)).To(Succeed())
		Expect(errors.Is(timeoutErr, ErrInvalidTime)).To(BeTrue())
	})

	It("should stop at until without dispatching later events", func() {
		resumedAt := -1.0
		_, _ = engine.Spawn("late", func(p *Process) error {
			if err := p.Timeout(20); err != nil {
				return err
			}
			resumedAt = p.Now()
			return nil
		})

		Expect(engine.Run(10)).To(Succeed())
		Expect(engine.Now()).To(Equal(10.0))
		Expect(engine.Pending()).To(Equal(1))
		Expect(resumedAt).To(Equal(-1.0))

		Expect(engine.Run(30)).To(Succeed())
		Expect(resumedAt).To(Equal(20.0))
		Expect(engine.Now()).To(Equal(30.0))
	})

	It("should dispatch events exactly at until", func() {
		fired := false
		_, _ = engine.Spawn("edge", func(p *Process) error {
			if err := p.WaitUntil(10); err != nil {
				return err
			}
			fired = true
			return nil
		})

		Expect(engine.Run(10)).To(Succeed())
		Expect(fired).To(BeTrue())
	})

	It("should move the clock monotonically", func() {
		var times []float64
		hook := HookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosBeforeEvent {
				times = append(times, ctx.Engine.Now())
			}
		})
		engine.AcceptHook(hook)
		for i := 0; i < 5; i++ {
			d := float64(5 - i)
			_, _ = engine.Spawn("p", func(p *Process) error {
				for j := 0; j < 3; j++ {
					if err := p.Timeout(d); err != nil {
						return err
					}
				}
				return nil
			})
		}

		Expect(engine.Run(100)).To(Succeed())
		Expect(times).NotTo(BeEmpty())
		for i := 1; i < len(times); i++ {
			Expect(times[i]).To(BeNumerically(">=", times[i-1]))
		}
	})

	It("should fail to resume a terminated process", func() {
		p, err := engine.Spawn("done", func(p *Process) error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Run(1)).To(Succeed())
		Expect(p.State()).To(Equal(StateTerminated))

		Expect(engine.ScheduleAt(engine.Now(), p, nil)).To(Succeed())
		err = engine.Run(2)

		Expect(errors.Is(err, ErrProcessTerminated)).To(BeTrue())
	})

	It("should abort the run when a process fails", func() {
		boom := errors.New("boom")
		reached := false
		_, _ = engine.Spawn("failing", func(p *Process) error {
			if err := p.Timeout(1); err != nil {
				return err
			}
			return boom
		})
		_, _ = engine.Spawn("later", func(p *Process) error {
			if err := p.Timeout(2); err != nil {
				return err
			}
			reached = true
			return nil
		})

		err := engine.Run(10)

		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("failing#1"))
		Expect(engine.Now()).To(Equal(1.0))
		Expect(reached).To(BeFalse())
	})

	It("should invoke hooks before and after each dispatch", func() {
		hook := NewMockHook(mockCtrl)
		var positions []*HookPos
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Engine).To(BeIdenticalTo(engine))
			Expect(ctx.Item.Process.Name()).To(Equal("p"))
			positions = append(positions, ctx.Pos)
		}).Times(4)
		engine.AcceptHook(hook)

		_, _ = engine.Spawn("p", func(p *Process) error { return p.Timeout(1) })

		Expect(engine.Run(5)).To(Succeed())
		Expect(positions).To(Equal([]*HookPos{
			HookPosBeforeEvent, HookPosAfterEvent,
			HookPosBeforeEvent, HookPosAfterEvent,
		}))
	})

	It("should unwind suspended processes on close", func() {
		unwound := false
		sleeper, _ := engine.Spawn("sleeper", func(p *Process) error {
			defer func() { unwound = true }()
			return p.Timeout(100)
		})
		Expect(engine.Run(0)).To(Succeed())
		pending, _ := engine.Spawn("pending", func(p *Process) error { return nil })
		Expect(engine.Live()).To(Equal(2))

		engine.Close()

		Expect(unwound).To(BeTrue())
		Expect(sleeper.State()).To(Equal(StateTerminated))
		Expect(pending.State()).To(Equal(StateTerminated))
		_, err := engine.Spawn("after", func(p *Process) error { return nil })
		Expect(errors.Is(err, ErrEngineClosed)).To(BeTrue())
		Expect(errors.Is(engine.Run(200), ErrEngineClosed)).To(BeTrue())
	})
})
