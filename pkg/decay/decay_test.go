package decay

import (
	"math"
	"testing"
)

func expParams() Params {
	return Params{Model: ModelExponential, Beta: 0.6, Lambda: LambdaFromHalfLife(3)}
}

func TestZeroUseCountIsZero(t *testing.T) {
	s := Calculate(0, 0, 1000, 1.0, expParams())
	if s != 0 {
		t.Fatalf("expected 0, got %v", s)
	}
}

func TestFreshMemoryScoresNearOne(t *testing.T) {
	s := Calculate(1, 1000, 1000, 1.0, expParams())
	if math.Abs(s-1.0) > 0.01 {
		t.Fatalf("expected ~1.0, got %v", s)
	}
}

func TestMonotoneNonIncreasing(t *testing.T) {
	p := expParams()
	last := math.Inf(1)
	for dt := int64(0); dt <= 1000000; dt += 10000 {
		s := Calculate(3, 0, dt, 1.0, p)
		if s > last+1e-12 {
			t.Fatalf("score increased at dt=%d: %v > %v", dt, s, last)
		}
		last = s
	}
}

func TestHalfLifeIdentity(t *testing.T) {
	halflife := 3.0
	p := Params{Model: ModelExponential, Beta: 0, Lambda: LambdaFromHalfLife(halflife)}
	s0 := Calculate(1, 0, 0, 1.0, p)
	sH := Calculate(1, 0, int64(halflife*86400), 1.0, p)
	if math.Abs(sH-s0*0.5) > 1e-9 {
		t.Fatalf("expected half of %v, got %v", s0, sH)
	}
}

func TestLambdaHalfLifeInverses(t *testing.T) {
	for _, h := range []float64{0.1, 1, 3, 30, 365} {
		lambda := LambdaFromHalfLife(h)
		back := HalfLifeFromLambda(lambda)
		if math.Abs(back-h)/h > 0.01 {
			t.Fatalf("h=%v roundtrip mismatch: got %v", h, back)
		}
	}
}

func TestPowerLawMonotone(t *testing.T) {
	p := Params{Model: ModelPowerLaw, Beta: 0.5, Alpha: 1.0, HalfLifeDays: 3}
	last := math.Inf(1)
	for dt := int64(0); dt <= 1000000; dt += 50000 {
		s := Calculate(2, 0, dt, 1.0, p)
		if s > last+1e-9 {
			t.Fatalf("power-law score increased: %v > %v", s, last)
		}
		last = s
	}
}

func TestTwoComponent(t *testing.T) {
	p := Params{Model: ModelTwoComponent, Beta: 0, FastLambda: LambdaFromHalfLife(0.5), SlowLambda: LambdaFromHalfLife(30), FastWeight: 0.5}
	s0 := Calculate(1, 0, 0, 1.0, p)
	if math.Abs(s0-1.0) > 1e-9 {
		t.Fatalf("expected 1.0 at dt=0, got %v", s0)
	}
	sLater := Calculate(1, 0, int64(100*86400), 1.0, p)
	if sLater >= s0 {
		t.Fatalf("expected decay over time")
	}
}

func TestThresholds(t *testing.T) {
	th := Thresholds{Forget: 0.05, Promote: 0.8, PromoteUseCount: 5, PromoteWindowDays: 7, Urgent: 0.10}
	if !th.ShouldForget(0.01) {
		t.Fatal("expected forget eligible")
	}
	if th.ShouldForget(0.5) {
		t.Fatal("expected not forget eligible")
	}
	if !th.ShouldPromote(0.9, 1, 0, 0) {
		t.Fatal("expected promote via score")
	}
	if !th.ShouldPromote(0.1, 10, 0, 3*86400) {
		t.Fatal("expected promote via use count within window")
	}
	if th.ShouldPromote(0.1, 10, 0, 100*86400) {
		t.Fatal("expected no promote outside window")
	}
	if !th.IsUrgent(0.05) {
		t.Fatal("expected urgent")
	}
}

func TestTemporalFactorClamped(t *testing.T) {
	if TemporalFactor(10) != 1 {
		t.Fatal("expected clamp to 1")
	}
	if TemporalFactor(-1) != 0 {
		t.Fatal("expected clamp to 0")
	}
	if TemporalFactor(1) != 0.5 {
		t.Fatalf("expected 0.5, got %v", TemporalFactor(1))
	}
}

func TestSecondsUntilThresholdExponential(t *testing.T) {
	p := expParams()
	dt, ok := SecondsUntilThreshold(1, 0, 1.0, 0.05, p)
	if !ok {
		t.Fatal("expected a finite answer")
	}
	s := Calculate(1, 0, int64(dt), 1.0, p)
	if math.Abs(s-0.05) > 1e-6 {
		t.Fatalf("expected score ~0.05 at dt, got %v", s)
	}
}
