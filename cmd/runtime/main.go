package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"agentcore-agent/handler"
	"agentcore-agent/internal/agent"
	"agentcore-agent/internal/config"
	"agentcore-agent/internal/gateway"
	"agentcore-agent/internal/identity"
	"agentcore-agent/internal/integrations/mcp"
	"agentcore-agent/internal/integrations/paramstore"
	"agentcore-agent/internal/memory"
	"agentcore-agent/internal/secrets"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx := context.Background()
	log := slog.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	control := bedrockagentcorecontrol.NewFromConfig(awsCfg)
	events := bedrockagentcore.NewFromConfig(awsCfg)
	modelAPI := bedrockruntime.NewFromConfig(awsCfg)

	params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Error("failed to create paramstore client", "err", err)
		os.Exit(1)
	}
	secretStore, err := secrets.New(secretsmanager.NewFromConfig(awsCfg), log)
	if err != nil {
		log.Error("failed to create secret store", "err", err)
		os.Exit(1)
	}
	idp, err := identity.NewClient(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.AWS.Region, log)
	if err != nil {
		log.Error("failed to create identity client", "err", err)
		os.Exit(1)
	}
	roles, err := gateway.NewRoleManager(iam.NewFromConfig(awsCfg), log)
	if err != nil {
		log.Error("failed to create role manager", "err", err)
		os.Exit(1)
	}
	functions, err := gateway.NewFunctionClient(awslambda.NewFromConfig(awsCfg), log)
	if err != nil {
		log.Error("failed to create function client", "err", err)
		os.Exit(1)
	}
	reconciler, err := gateway.New(control, idp, secretStore, roles, functions, cfg.AWS.Region, log, nil)
	if err != nil {
		log.Error("failed to create reconciler", "err", err)
		os.Exit(1)
	}
	memories, err := memory.NewManager(control, log)
	if err != nil {
		log.Error("failed to create memory manager", "err", err)
		os.Exit(1)
	}

	// ---- Conversation store ----
	memoryID, err := memories.EnsureMemory(ctx, cfg.Memory.Name, cfg.Memory.Description, cfg.Memory.EventExpiryDays)
	if err != nil {
		log.Error("failed to resolve conversation store", "err", err)
		os.Exit(1)
	}
	log.Info("conversation store ready", "memory_id", memoryID)

	// ---- Session factory ----
	factory := func(ctx context.Context, actorID, sessionID string) (handler.TurnRunner, error) {
		gatewayURL, err := reconciler.ResolveURL(ctx, params, cfg.Gateway.ParamPrefix, cfg.Gateway.Name)
		if err != nil {
			return nil, err
		}
		clientInfo, err := reconciler.ClientInfoFromGateway(ctx, cfg.Gateway.Name)
		if err != nil {
			return nil, err
		}
		token, err := reconciler.AccessToken(ctx, cfg.Gateway.Name, clientInfo)
		if err != nil {
			return nil, err
		}
		toolClient, err := mcp.NewClient(gatewayURL, token)
		if err != nil {
			return nil, err
		}
		session, err := memory.NewSessionHandle(events, memoryID, actorID, sessionID)
		if err != nil {
			return nil, err
		}
		hooks, err := memory.NewHooks(session, log)
		if err != nil {
			return nil, err
		}
		return agent.NewSession(modelAPI, agent.ModelConfig{
			ModelID:     cfg.Model.ModelID,
			MaxTokens:   cfg.Model.MaxTokens,
			Temperature: cfg.Model.Temperature,
		}, toolClient, hooks, agent.DefaultSystemPrompt, log)
	}

	h, err := handler.NewHandler(factory, cfg.Memory.DefaultActorID, log)
	if err != nil {
		log.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	// ---- HTTP server ----
	timeout := time.Duration(cfg.Runtime.RequestTimeoutSec) * time.Second
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("POST /invocations", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var req handler.InvokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, handler.InvokeResponse{Error: "invalid JSON payload"})
			return
		}
		res := h.Invoke(ctx, bearerToken(r), req)
		writeJSON(w, http.StatusOK, res)
	})

	server := &http.Server{
		Addr:              cfg.Runtime.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("runtime listening", "addr", cfg.Runtime.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
