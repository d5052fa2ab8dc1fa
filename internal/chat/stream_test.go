package chat_test

import (
	"context"
	"errors"
	"io"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/chat"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/prompt"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResponseStream", func() {
	var generator *mockGenerator

	open := func() *chat.ResponseStream {
		service := chat.NewService(
			&mockClassifier{result: prompt.Result{Allowed: true, Classification: prompt.ClassificationView}},
			&mockPolicy{allow: true},
			generator,
			&mockAudit{},
			&mockHistory{},
			&mockPublisher{},
			logger.Discard(),
		)
		stream, err := service.Chat(context.Background(), internal.Caller{ID: "user-1"}, chat.Request{
			Messages: []chatDatamodel.Message{{Role: chatDatamodel.RoleUser, Content: "hi"}},
		})
		Expect(err).NotTo(HaveOccurred())
		return stream
	}

	collect := func(stream *chat.ResponseStream) ([]string, error) {
		var chunks []string
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return chunks, nil
			}
			if err != nil {
				return chunks, err
			}
			chunks = append(chunks, chunk)
		}
	}

	It("keeps partial output and ends with one error chunk on failure", func() {
		generator = &mockGenerator{stream: &fakeStream{chunks: []string{"Partial"}, err: errors.New("connection reset")}}
		stream := open()

		chunks, err := collect(stream)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"Partial", chat.StreamErrorText}))
		Expect(stream.Failed()).To(BeTrue())

		_, err = stream.Recv()
		Expect(err).To(Equal(io.EOF))
	})

	It("returns cancellation as is", func() {
		generator = &mockGenerator{stream: &fakeStream{err: context.Canceled}}
		stream := open()

		_, err := collect(stream)
		Expect(err).To(MatchError(context.Canceled))
		Expect(stream.Failed()).To(BeFalse())
	})

	It("closes the underlying stream", func() {
		inner := &fakeStream{chunks: []string{"a"}}
		generator = &mockGenerator{stream: inner}
		stream := open()

		Expect(stream.Close()).To(Succeed())
		Expect(inner.closed).To(BeTrue())
	})

})
