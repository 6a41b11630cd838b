package loading

import "testing"

func TestFlag_StartAndDone(t *testing.T) {
	var f Flag
	if f.Active() {
		t.Fatal("zero Flag should be inactive")
	}

	done := f.Start()
	if !f.Active() {
		t.Error("Flag should be active after Start")
	}
	done()
	if f.Active() {
		t.Error("Flag should be inactive after done")
	}
}

func TestFlag_OverlappingCalls(t *testing.T) {
	var f Flag
	done1 := f.Start()
	done2 := f.Start()

	done1()
	if !f.Active() {
		t.Error("Flag should stay active while a call is in flight")
	}
	done2()
	if f.Active() {
		t.Error("Flag should be inactive after all calls finish")
	}
}

func TestFlag_DoneIsIdempotent(t *testing.T) {
	var f Flag
	done1 := f.Start()
	done2 := f.Start()

	done1()
	done1()
	if !f.Active() {
		t.Error("calling done twice must not end another call")
	}
	done2()
}
