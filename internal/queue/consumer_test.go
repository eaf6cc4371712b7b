package queue_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/internal/model"
	"hyperscribe.app/scribe/internal/queue"
)

var _ = Describe("ParseMessage", func() {
	It("parses an audio chunk", func() {
		msg, err := queue.ParseMessage(redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"task_type":     "audio_chunk",
				"discussion_id": "enc-1",
				"chunk_index":   "4",
				"audio":         "\x00\x01mp3",
				"filename":      "chunk_004.mp3",
				"trace_id":      "abc",
				"attempt":       "2",
			},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.ID).To(Equal("1-0"))
		Expect(msg.TaskType).To(Equal(queue.TaskTypeAudioChunk))
		Expect(msg.DiscussionID).To(Equal("enc-1"))
		Expect(msg.ChunkIndex).To(Equal(4))
		Expect(msg.Audio).To(Equal([]byte("\x00\x01mp3")))
		Expect(msg.Filename).To(Equal("chunk_004.mp3"))
		Expect(msg.TraceID).To(Equal("abc"))
		Expect(msg.Attempt).To(Equal(2))
	})

	It("defaults to an audio chunk on the first attempt", func() {
		msg, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: map[string]any{
			"discussion_id": "enc-1",
			"audio":         "mp3",
		}})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.TaskType).To(Equal(queue.TaskTypeAudioChunk))
		Expect(msg.Attempt).To(Equal(1))
	})

	It("accepts a resync without audio", func() {
		msg, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: map[string]any{
			"task_type":     "discussion_resync",
			"discussion_id": "enc-1",
		}})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.TaskType).To(Equal(queue.TaskTypeResync))
	})

	DescribeTable("rejects malformed messages",
		func(values map[string]any, expected string) {
			_, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: values})
			Expect(err).To(MatchError(ContainSubstring(expected)))
		},
		Entry("missing discussion", map[string]any{"audio": "mp3"}, "missing discussion_id"),
		Entry("empty discussion", map[string]any{"discussion_id": "", "audio": "mp3"}, "empty discussion_id"),
		Entry("chunk without audio", map[string]any{"discussion_id": "enc-1"}, "missing audio"),
		Entry("bad attempt", map[string]any{"discussion_id": "enc-1", "audio": "mp3", "attempt": "x"}, "parsing attempt"),
		Entry("unknown task", map[string]any{"discussion_id": "enc-1", "task_type": "other"}, "unknown task_type"),
	)

	It("round-trips through MessageValues", func() {
		original := queue.Message{
			ID:           "1-0",
			TaskType:     queue.TaskTypeAudioChunk,
			DiscussionID: "enc-1",
			ChunkIndex:   2,
			Audio:        []byte("mp3"),
			ContentType:  "audio/mpeg",
			TraceID:      "abc",
			Attempt:      1,
		}

		values := queue.MessageValues(original, 2)
		stringified := make(map[string]any, len(values))
		for k, v := range values {
			if b, ok := v.([]byte); ok {
				stringified[k] = string(b)
				continue
			}
			stringified[k] = v
		}
		parsed, err := queue.ParseMessage(redis.XMessage{ID: "2-0", Values: stringified})

		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Attempt).To(Equal(2))
		Expect(parsed.Audio).To(Equal(original.Audio))
		Expect(parsed.ChunkIndex).To(Equal(2))
		Expect(parsed.ContentType).To(Equal("audio/mpeg"))
	})
})

var _ = Describe("EffectValues", func() {
	It("carries the identity, kind and command", func() {
		values, err := queue.EffectValues("enc-1", 3, model.Effect{
			ID:              42,
			Kind:            model.EffectKindEdit,
			InstructionUUID: "u1",
			Command:         model.Command{UUID: "u1", Type: "plan", Payload: map[string]any{"narrative": "rest"}},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(values).To(HaveKeyWithValue("kind", "edit"))
		Expect(values).To(HaveKeyWithValue("instruction_uuid", "u1"))
		Expect(values).To(HaveKeyWithValue("cycle", 3))
		var cmd model.Command
		Expect(json.Unmarshal([]byte(values["command"].(string)), &cmd)).To(Succeed())
		Expect(cmd.Payload).To(HaveKeyWithValue("narrative", "rest"))
	})
})
