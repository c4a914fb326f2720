package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/helpgate/helpgate/internal/answer"
	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
	"github.com/helpgate/helpgate/internal/learning"
	"github.com/helpgate/helpgate/internal/policy"
)

type fakeAnswerService struct {
	resp answer.Response
	err  error
}

func (f *fakeAnswerService) Query(context.Context, string, []channel.ChatTurn) (answer.Response, error) {
	return f.resp, f.err
}

func confidence(v float64) *float64 { return &v }

func incoming(question string) channel.IncomingMessage {
	return channel.IncomingMessage{
		MessageID: "in-1",
		Channel:   channel.Web,
		Question:  question,
		User:      channel.UserRef{UserID: "u1"},
	}
}

func newGateway(resp answer.Response) *Gateway {
	return New(nil, &fakeAnswerService{resp: resp}, learning.NewRouter(nil), nil, 0)
}

func TestProcessMessageHappyPath(t *testing.T) {
	g := newGateway(answer.Response{
		Answer:          "Go to Settings, then Backup.",
		ConfidenceScore: confidence(0.97),
	})

	msg := incoming("How do I back up my wallet?")
	out, gwErr := g.ProcessMessage(context.Background(), msg)
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	if out.InReplyTo != msg.MessageID {
		t.Fatalf("in_reply_to = %q, want %q", out.InReplyTo, msg.MessageID)
	}
	if out.Channel != msg.Channel {
		t.Fatalf("channel = %s, want %s", out.Channel, msg.Channel)
	}
	if out.RequiresHuman {
		t.Fatal("high confidence answer should auto-send")
	}
	if out.Metadata.RoutingAction != learning.ActionAutoSend.String() {
		t.Fatalf("routing_action = %s", out.Metadata.RoutingAction)
	}
	if out.MessageID == "" || out.MessageID == msg.MessageID {
		t.Fatalf("outgoing message id %q should be fresh", out.MessageID)
	}
}

func TestProcessMessageLowConfidenceQueues(t *testing.T) {
	g := newGateway(answer.Response{
		Answer:          "Maybe try restarting?",
		ConfidenceScore: confidence(0.80),
	})

	out, gwErr := g.ProcessMessage(context.Background(), incoming("It is broken"))
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	if !out.RequiresHuman {
		t.Fatal("mid confidence should require review")
	}
	if out.Metadata.RoutingAction != learning.ActionQueueMedium.String() {
		t.Fatalf("routing_action = %s", out.Metadata.RoutingAction)
	}
}

func TestProcessMessageInvalid(t *testing.T) {
	g := newGateway(answer.Response{Answer: "unused"})

	_, gwErr := g.ProcessMessage(context.Background(), incoming("   "))
	if gwErr == nil || gwErr.Code != channel.ErrInvalidMessage {
		t.Fatalf("err = %v, want INVALID_MESSAGE", gwErr)
	}
}

func TestProcessMessageAnswerServiceFailure(t *testing.T) {
	g := New(nil, &fakeAnswerService{err: errors.New("connection refused")}, nil, nil, 0)

	_, gwErr := g.ProcessMessage(context.Background(), incoming("hello?"))
	if gwErr == nil || gwErr.Code != channel.ErrRAGServiceError {
		t.Fatalf("err = %v, want RAG_SERVICE_ERROR", gwErr)
	}
}

func TestPreHookShortCircuits(t *testing.T) {
	g := newGateway(answer.Response{Answer: "never reached"})
	g.RegisterPreHook(PreHook{
		Name:     "blocker",
		Priority: PriorityNormal,
		Fn: func(context.Context, *channel.IncomingMessage) *channel.GatewayError {
			return channel.NewGatewayError(channel.ErrAuthenticationFailed, "nope")
		},
	})

	_, gwErr := g.ProcessMessage(context.Background(), incoming("question"))
	if gwErr == nil || gwErr.Code != channel.ErrAuthenticationFailed {
		t.Fatalf("err = %v, want AUTHENTICATION_FAILED", gwErr)
	}
}

func TestHookOrderingPriorityThenRegistration(t *testing.T) {
	g := newGateway(answer.Response{Answer: "ok", ConfidenceScore: confidence(0.99)})
	var order []string
	record := func(name string) PostHookFunc {
		return func(context.Context, *channel.IncomingMessage, *channel.OutgoingMessage) *channel.GatewayError {
			order = append(order, name)
			return nil
		}
	}
	g.RegisterPostHook(PostHook{Name: "low", Priority: PriorityLow, Fn: record("low")})
	g.RegisterPostHook(PostHook{Name: "normal-b", Priority: PriorityNormal, Fn: record("normal-b")})
	g.RegisterPostHook(PostHook{Name: "high", Priority: PriorityHigh, Fn: record("high")})
	g.RegisterPostHook(PostHook{Name: "normal-a", Priority: PriorityNormal, Fn: record("normal-a")})

	out, gwErr := g.ProcessMessage(context.Background(), incoming("question"))
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	want := []string{"high", "normal-b", "normal-a", "low"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if len(out.Metadata.HooksExecuted) != 4 {
		t.Fatalf("hooks_executed = %v", out.Metadata.HooksExecuted)
	}
}

func TestBypassHooksSkipsAllHooks(t *testing.T) {
	g := newGateway(answer.Response{Answer: "ok", ConfidenceScore: confidence(0.99)})
	g.RegisterPreHook(PreHook{
		Name: "blocker", Priority: PriorityHigh,
		Fn: func(context.Context, *channel.IncomingMessage) *channel.GatewayError {
			return channel.NewGatewayError(channel.ErrServiceUnavailable, "blocked")
		},
	})

	msg := incoming("question")
	msg.BypassHooks = true
	out, gwErr := g.ProcessMessage(context.Background(), msg)
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	if len(out.Metadata.HooksExecuted) != 0 {
		t.Fatalf("hooks_executed = %v, want none", out.Metadata.HooksExecuted)
	}
}

func TestGenerationPolicyHook(t *testing.T) {
	policies := policy.NewService(nil, policy.NewMemoryStore())
	if _, err := policies.Set(context.Background(), policy.ChannelPolicy{
		Channel: channel.Web, AIGenerationEnabled: false, AutoResponseEnabled: true,
	}); err != nil {
		t.Fatalf("set policy: %v", err)
	}

	g := newGateway(answer.Response{Answer: "never"})
	g.RegisterPreHook(NewGenerationPolicyHook(policies))

	_, gwErr := g.ProcessMessage(context.Background(), incoming("question"))
	if gwErr == nil || gwErr.Code != channel.ErrServiceUnavailable {
		t.Fatalf("err = %v, want SERVICE_UNAVAILABLE", gwErr)
	}
}

func TestAutoResponsePolicyHookForcesReview(t *testing.T) {
	policies := policy.NewService(nil, policy.NewMemoryStore())
	if _, err := policies.Set(context.Background(), policy.ChannelPolicy{
		Channel: channel.Web, AIGenerationEnabled: true, AutoResponseEnabled: false,
	}); err != nil {
		t.Fatalf("set policy: %v", err)
	}

	g := newGateway(answer.Response{Answer: "confident answer", ConfidenceScore: confidence(0.99)})
	g.RegisterPostHook(NewAutoResponsePolicyHook(policies))

	out, gwErr := g.ProcessMessage(context.Background(), incoming("question"))
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	if !out.RequiresHuman {
		t.Fatal("auto-response disabled must force human review")
	}
	if out.Metadata.RoutingAction != learning.ActionQueueMedium.String() {
		t.Fatalf("routing_action = %s", out.Metadata.RoutingAction)
	}
	if out.Metadata.RoutingReason != AutoResponseDisabledReason {
		t.Fatalf("routing_reason = %q", out.Metadata.RoutingReason)
	}
}

func TestRateLimitHook(t *testing.T) {
	g := newGateway(answer.Response{Answer: "ok", ConfidenceScore: confidence(0.99)})
	g.RegisterPreHook(NewRateLimitHook(NewRateLimiter(0.0001, 2)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, gwErr := g.ProcessMessage(ctx, incoming("question")); gwErr != nil {
			t.Fatalf("message %d within burst: %v", i, gwErr)
		}
	}
	_, gwErr := g.ProcessMessage(ctx, incoming("question"))
	if gwErr == nil || gwErr.Code != channel.ErrRateLimitExceeded {
		t.Fatalf("err = %v, want RATE_LIMIT_EXCEEDED", gwErr)
	}
}

func TestEscalationHookCreatesEscalationAndSwapsAnswer(t *testing.T) {
	store := escalation.NewMemoryStore()
	escalations := escalation.NewService(nil, store, nil, nil, nil, escalation.Config{})
	registry := channel.NewRegistry(nil)

	g := newGateway(answer.Response{
		Answer:          "Go to Settings, then Backup.",
		ConfidenceScore: confidence(0.40),
		RequiresHuman:   true,
	})
	g.RegisterPostHook(NewEscalationHook(nil, escalations, registry, nil, "@support:example.org"))

	out, gwErr := g.ProcessMessage(context.Background(), incoming("How do I back up my wallet?"))
	if gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	if !strings.Contains(out.Answer, "#1") {
		t.Fatalf("answer should be the escalation notice with reference #1, got %q", out.Answer)
	}
	if len(out.Sources) != 0 {
		t.Fatal("notice must not carry the draft's sources")
	}

	esc, err := escalations.GetByMessageID(context.Background(), "in-1")
	if err != nil {
		t.Fatalf("escalation lookup: %v", err)
	}
	if esc.Status != escalation.StatusPending {
		t.Fatalf("status = %s, want pending", esc.Status)
	}
	if esc.AIDraftAnswer != "Go to Settings, then Backup." {
		t.Fatalf("draft = %q", esc.AIDraftAnswer)
	}
	if esc.RoutingAction != learning.ActionNeedsHuman {
		t.Fatalf("routing_action = %s", esc.RoutingAction)
	}
}

func TestEscalationHookIdempotentOnRedelivery(t *testing.T) {
	store := escalation.NewMemoryStore()
	escalations := escalation.NewService(nil, store, nil, nil, nil, escalation.Config{})

	g := newGateway(answer.Response{
		Answer:          "Go to Settings, then Backup.",
		ConfidenceScore: confidence(0.40),
		RequiresHuman:   true,
	})
	g.RegisterPostHook(NewEscalationHook(nil, escalations, channel.NewRegistry(nil), nil, "@support"))

	// The same inbound message redelivered: each pass mints a fresh outgoing
	// id, so only keying on the inbound id keeps the escalation single.
	for i := 0; i < 2; i++ {
		if _, gwErr := g.ProcessMessage(context.Background(), incoming("How do I back up my wallet?")); gwErr != nil {
			t.Fatalf("process %d: %v", i, gwErr)
		}
	}

	all, err := escalations.List(context.Background(), escalation.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("escalations = %d, want 1", len(all))
	}
	if all[0].MessageID != "in-1" {
		t.Fatalf("message id = %q, want the inbound id", all[0].MessageID)
	}
}

func TestPIIRedaction(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "Contact admin@example.com for help", "Contact [redacted-email] for help"},
		{"matrix id", "Ping @helper:matrix.example.org there", "Ping [redacted-matrix-id] there"},
		{"ipv4", "The server at 192.168.10.44 is down", "The server at [redacted-ip-address] is down"},
		{"btc", "Send funds to 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa today", "Send funds to [redacted-btc-address] today"},
		{"phone", "Call +49 30 1234567 now", "Call [redacted-phone] now"},
		{"clean", "Nothing sensitive here.", "Nothing sensitive here."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RedactPII(tc.in); got != tc.want {
				t.Fatalf("RedactPII(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPIIFilterRunsBeforeEscalationHook(t *testing.T) {
	store := escalation.NewMemoryStore()
	escalations := escalation.NewService(nil, store, nil, nil, nil, escalation.Config{})

	g := newGateway(answer.Response{
		Answer:          "Reach us at staff@example.com",
		ConfidenceScore: confidence(0.40),
		RequiresHuman:   true,
	})
	g.RegisterPostHook(NewEscalationHook(nil, escalations, channel.NewRegistry(nil), nil, "@support"))
	g.RegisterPostHook(NewPIIFilterHook())

	if _, gwErr := g.ProcessMessage(context.Background(), incoming("How do I reach support?")); gwErr != nil {
		t.Fatalf("process: %v", gwErr)
	}
	esc, err := escalations.GetByMessageID(context.Background(), "in-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if strings.Contains(esc.AIDraftAnswer, "staff@example.com") {
		t.Fatal("escalation draft must see the redacted answer")
	}
}
