package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"zombie-sweep/internal/game"
)

// Handler methods for routerHandlers.
// Used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.RecentEvents(100))
}

// handleGetStats serves a lightweight summary for dashboards that do not
// want the full entity list.
func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	stats := map[string]any{
		"tick":     uint64(0),
		"mode":     h.engine.Mode(),
		"entities": 0,
		"quests":   0,
	}
	if snap != nil {
		stats["tick"] = snap.Tick
		stats["scope"] = snap.Scope
		stats["entities"] = len(snap.Entities)
		stats["quests"] = len(snap.Quests)
		stats["arcade_phase"] = snap.Arcade.Phase
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleScopeLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Scope == "" {
		writeError(w, "Scope is required", http.StatusBadRequest)
		return
	}

	if err := h.engine.EnterLevel(r.Context(), req.Scope); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"success": true, "mode": h.engine.Mode()})
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Pause(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Resume(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"success": true, "mode": h.engine.Mode()})
}

func (h *routerHandlers) handleReturnToLobby(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ReturnToLobby(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MoveX float64 `json:"move_x"`
		Jump  bool    `json:"jump"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	h.engine.SetPlayerInput(game.PlayerInput{MoveX: req.MoveX, Jump: req.Jump})
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleFire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DirX float64 `json:"dir_x"`
		DirY float64 `json:"dir_y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.Fire(req.DirX, req.DirY); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetQuests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Quests())
}

func (h *routerHandlers) handleQuestConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestID string `json:"quest_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.ConfirmQuest(req.QuestID); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleArcadeStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartArcade(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleArcadeCommit(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CommitArcade(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleArcadeDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DiscardArcade(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

// savePath sanitizes a user-supplied save name into a path inside saveDir.
func (h *routerHandlers) savePath(name string) (string, bool) {
	if name == "" {
		name = "zombie-sweep"
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", false
	}
	return filepath.Join(h.saveDir, name+".save.json"), true
}

func (h *routerHandlers) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	path, ok := h.savePath(req.Name)
	if !ok {
		writeError(w, "Invalid save name", http.StatusBadRequest)
		return
	}
	if err := h.engine.SaveToFile(path); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"success": true, "path": path})
}

func (h *routerHandlers) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	path, ok := h.savePath(req.Name)
	if !ok {
		writeError(w, "Invalid save name", http.StatusBadRequest)
		return
	}
	if err := h.engine.RestoreFromFile(path); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"success": true, "mode": h.engine.Mode()})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
