// Package loading は各フックが公開する「読み込み中」フラグを提供する。
package loading

import "sync/atomic"

// Flag は進行中の呼び出しがある間だけtrueになるフラグ。
// 同じフックの呼び出しが重なっても、最後の呼び出しが終わるまでtrueを保つ。
type Flag struct {
	inFlight atomic.Int32
}

// Start は呼び出しの開始を記録し、終了時に呼ぶ関数を返す。
//
//	done := h.loading.Start()
//	defer done()
func (f *Flag) Start() (done func()) {
	f.inFlight.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			f.inFlight.Add(-1)
		}
	}
}

// Active は進行中の呼び出しがあればtrueを返す。
func (f *Flag) Active() bool {
	return f.inFlight.Load() > 0
}
