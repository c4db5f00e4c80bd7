package handler

import "net/http"

// Health はプロセスの生存確認に応答する。
// 上流の状態には依存せず、常に200を返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
