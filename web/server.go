package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"gsi-service/config"
	"gsi-service/logger"
	"gsi-service/services"
)

// maxPayloadBytes GSI载荷上限。正常载荷在几KB量级
const maxPayloadBytes = 1 << 20

// Server 摄取网关和只读API。
// 游戏客户端把JSON快照POST到根路径，token在请求体内而非header
type Server struct {
	config     *config.Config
	router     *services.SessionRouter
	store      *services.MatchStore
	stats      *services.IngestStats
	wsHub      *Hub
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer 创建服务器
func NewServer(cfg *config.Config, sessionRouter *services.SessionRouter, store *services.MatchStore, stats *services.IngestStats, hub *Hub) *Server {
	return &Server{
		config: cfg,
		router: sessionRouter,
		store:  store,
		stats:  stats,
		wsHub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

// Start 启动HTTP服务器 (阻塞)
func (s *Server) Start() error {
	router := mux.NewRouter()

	// GSI摄取端点
	router.HandleFunc("/", s.handleIngest).Methods("POST")

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/sessions", s.handleGetSessions).Methods("GET")
	api.HandleFunc("/matches", s.handleGetMatches).Methods("GET")
	api.HandleFunc("/matches/{match_id}/rounds", s.handleGetRounds).Methods("GET")
	api.HandleFunc("/matches/{match_id}/stats", s.handleGetMatchStats).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Stop 优雅关闭HTTP服务器
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// handleIngest 接收GSI快照。响应只有裸状态码，协议不携带语义回复。
// 解码或规范化失败在边界直接拒绝，不构造任何部分状态
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	raw, err := services.DecodePayload(body)
	if err != nil {
		s.stats.RecordMalformed()
		logger.Errorf("[Gateway] Failed to decode payload: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// 大厅载荷没有map块，跳过即可
	if raw.IsMenuPayload() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	snap, err := services.Normalize(raw)
	if err != nil {
		s.stats.RecordMalformed()
		logger.Debugf("[Gateway] Malformed payload: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.router.Route(raw.AuthToken(), snap); err != nil {
		if errors.Is(err, services.ErrAuthenticationFailed) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Errorf("[Gateway] Failed to route snapshot: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":          "ok",
		"active_sessions": s.router.Count(),
	})
}

func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.router.ActiveSessions())
}

func (s *Server) handleGetMatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	matches, err := s.store.ListMatches(limit)
	if err != nil {
		logger.Errorf("[API] Failed to list matches: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, matches)
}

func (s *Server) handleGetRounds(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["match_id"]

	rounds, err := s.store.ListRounds(matchID)
	if err != nil {
		logger.Errorf("[API] Failed to list rounds for %s: %v", matchID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rounds)
}

func (s *Server) handleGetMatchStats(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["match_id"]

	stats, err := s.store.ListMatchStats(matchID)
	if err != nil {
		logger.Errorf("[API] Failed to list stats for %s: %v", matchID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.stats.Snapshot())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("[WS] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:      s.wsHub,
		conn:     conn,
		send:     make(chan []byte, 64),
		matchIDs: make(map[string]bool),
	}
	s.wsHub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("[API] Failed to encode response: %v", err)
	}
}
