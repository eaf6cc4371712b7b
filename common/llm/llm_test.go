package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"

	"hyperscribe.app/scribe/common/llm"
)

type fakeClient struct {
	chatFn    func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	callCount int
}

func (f *fakeClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.callCount++
	return f.chatFn(ctx, req, result)
}

func (f *fakeClient) Model() string { return "fake" }

// apiError builds a provider error complete enough for its Error() method.
func apiError(status int) error {
	return &openai.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

type sampleResponse struct {
	Items []string `json:"items" jsonschema_description:"Items found"`
}

var _ = Describe("GenerateSchema", func() {
	It("inlines the object properties", func() {
		raw, err := json.Marshal(llm.GenerateSchema[sampleResponse]())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(raw, &schema)).To(Succeed())
		Expect(schema).NotTo(HaveKey("$defs"))
		Expect(schema["properties"]).To(HaveKey("items"))
		Expect(schema["additionalProperties"]).To(BeFalse())
	})
})

var _ = Describe("ChatWithRetry", func() {
	var (
		ctx    context.Context
		policy llm.RetryPolicy
	)

	BeforeEach(func() {
		ctx = context.Background()
		policy = llm.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}
	})

	It("returns the first successful answer", func() {
		client := &fakeClient{chatFn: func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
			result.(*sampleResponse).Items = []string{"a"}
			return &llm.Response{PromptTokens: 3}, nil
		}}

		var out sampleResponse
		resp, err := llm.ChatWithRetry(ctx, client, policy, llm.Request{SchemaName: "sample"}, &out)

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.PromptTokens).To(Equal(3))
		Expect(out.Items).To(Equal([]string{"a"}))
		Expect(client.callCount).To(Equal(1))
	})

	It("retries rate limited calls", func() {
		client := &fakeClient{}
		client.chatFn = func(_ context.Context, _ llm.Request, _ any) (*llm.Response, error) {
			if client.callCount < 3 {
				return nil, apiError(429)
			}
			return &llm.Response{}, nil
		}

		var out sampleResponse
		_, err := llm.ChatWithRetry(ctx, client, policy, llm.Request{}, &out)

		Expect(err).NotTo(HaveOccurred())
		Expect(client.callCount).To(Equal(3))
	})

	It("gives up after the configured attempts", func() {
		client := &fakeClient{chatFn: func(_ context.Context, _ llm.Request, _ any) (*llm.Response, error) {
			return nil, apiError(503)
		}}

		var out sampleResponse
		_, err := llm.ChatWithRetry(ctx, client, policy, llm.Request{}, &out)

		Expect(err).To(HaveOccurred())
		Expect(client.callCount).To(Equal(3))
	})

	It("does not retry non-transient errors", func() {
		client := &fakeClient{chatFn: func(_ context.Context, _ llm.Request, _ any) (*llm.Response, error) {
			return nil, errors.New("bad request")
		}}

		var out sampleResponse
		_, err := llm.ChatWithRetry(ctx, client, policy, llm.Request{}, &out)

		Expect(err).To(MatchError("bad request"))
		Expect(client.callCount).To(Equal(1))
	})
})

var _ = Describe("IsRetryable", func() {
	DescribeTable("classifies provider errors",
		func(err error, expected bool) {
			Expect(llm.IsRetryable(context.Background(), err)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("rate limited", apiError(429), true),
		Entry("server error", apiError(502), true),
		Entry("client error", apiError(400), false),
		Entry("cancelled", context.Canceled, false),
		Entry("plain error", errors.New("boom"), false),
	)
})

var _ = Describe("NewClient", func() {
	It("requires an API key", func() {
		_, err := llm.NewClient(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key")))
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewClient(llm.Config{Provider: "mystery", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported")))
	})

	DescribeTable("selects the provider",
		func(provider, model string) {
			c, err := llm.NewClient(llm.Config{Provider: provider, APIKey: "k", Model: model})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Model()).To(Equal(model))
		},
		Entry("openai", llm.ProviderOpenAI, "gpt-4o"),
		Entry("anthropic", llm.ProviderAnthropic, "claude-sonnet-4-5"),
		Entry("default", "", "gpt-4o-mini"),
	)
})
