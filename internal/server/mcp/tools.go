package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/voxcode/internal/capture"
)

func (s *Server) handleStart(ctx context.Context, req *sdk.CallToolRequest, args StartArgs) (*sdk.CallToolResult, StartResult, error) {
	// the session outlives this request
	if err := s.engine.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, StartResult{}, fmt.Errorf("failed to start dictation: %w", err)
	}

	st := s.engine.Status()
	s.log.Info().Str("session_id", st.SessionID).Msg("dictation started")

	out := StartResult{SessionID: st.SessionID, Mode: string(st.Mode)}
	return textResult(fmt.Sprintf("Recording (%s, session %s)", st.Mode, st.SessionID)), out, nil
}

func (s *Server) handleStop(ctx context.Context, req *sdk.CallToolRequest, args StopArgs) (*sdk.CallToolResult, TranscriptResult, error) {
	res, err := s.engine.Stop(ctx)
	if err != nil {
		return nil, TranscriptResult{}, fmt.Errorf("failed to stop dictation: %w", err)
	}

	out := toTranscriptResult(res)
	return textResult(describe(out)), out, nil
}

func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args StatusArgs) (*sdk.CallToolResult, StatusResult, error) {
	st := s.engine.Status()
	recent, lastErr := s.history.Snapshot()

	out := StatusResult{
		State:          st.State.String(),
		Mode:           string(st.Mode),
		SessionID:      st.SessionID,
		BufferedChunks: st.BufferedChunks,
		Recent:         recent,
		LastError:      lastErr,
	}
	if !st.StartedAt.IsZero() {
		out.StartedAt = st.StartedAt.Format(time.RFC3339)
	}

	return textResult(fmt.Sprintf("State: %s, mode: %s, buffered chunks: %d", out.State, out.Mode, out.BufferedChunks)), out, nil
}

func (s *Server) handleTranscribeWAV(ctx context.Context, req *sdk.CallToolRequest, args TranscribeWAVArgs) (*sdk.CallToolResult, TranscriptResult, error) {
	samples, rate, err := decodeAudio(args.Audio, args.SampleRate)
	if err != nil {
		return nil, TranscriptResult{}, err
	}

	res, err := s.engine.TranscribeSamples(ctx, samples, rate)
	if err != nil {
		return nil, TranscriptResult{}, fmt.Errorf("transcription failed: %w", err)
	}

	out := toTranscriptResult(res)
	return textResult(describe(out)), out, nil
}

func toTranscriptResult(res capture.Result) TranscriptResult {
	out := TranscriptResult{Outcome: string(res.Outcome), Text: res.Text}
	if !res.Timestamp.IsZero() {
		out.Timestamp = res.Timestamp.Format(time.RFC3339)
	}
	return out
}

func describe(r TranscriptResult) string {
	if r.Outcome == string(capture.OutcomeDispatched) {
		return r.Text
	}
	return fmt.Sprintf("No transcript (%s)", r.Outcome)
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}
