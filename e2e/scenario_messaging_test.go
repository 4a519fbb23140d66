package e2e

import (
	"encoding/json"
	"gym-chat/domain/chat"
	"gym-chat/services"
	"testing"

	"github.com/stretchr/testify/suite"
)

type messagingSuite struct {
	BaseSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &messagingSuite{})
}

func (s *messagingSuite) TestMultiDeviceConversation() {
	alicePhone := s.Connect("alice", "member")
	defer alicePhone.Close()
	aliceLaptop := s.Connect("alice", "member")
	defer aliceLaptop.Close()
	bob := s.Connect("bob", "coach")
	defer bob.Close()

	var ack chat.Ack
	s.Run("Step 1: send from the phone", func() {
		s.Step("alice sends from her phone")
		completion := alicePhone.Call(services.MethodSendDirectMessage,
			services.SendDirectMessageArgs{RecipientID: "bob", Body: "Squats at 6?", ClientMessageID: "c-1"})
		s.Require().Nil(completion.Error)
		s.Require().NoError(json.Unmarshal(completion.Result, &ack))
		s.Require().Equal(2, ack.Delivered)
	})

	s.Run("Step 2: every other device receives it once", func() {
		s.Step("bob and alice's laptop get ReceiveDirectMessage")
		for _, device := range []*Device{bob, aliceLaptop} {
			frame := device.AwaitEvent(string(chat.ReceiveDirectMessage))
			var payload chat.MessagePayload
			s.Require().NoError(json.Unmarshal(frame.Payload, &payload))
			s.Require().Equal(ack.MessageID, payload.MessageID)
			s.Require().Equal("Squats at 6?", payload.Body)
		}
	})

	s.Run("Step 3: a retried send is not delivered twice", func() {
		s.Step("the phone retries with the same client id")
		completion := alicePhone.Call(services.MethodSendDirectMessage,
			services.SendDirectMessageArgs{RecipientID: "bob", Body: "Squats at 6?", ClientMessageID: "c-1"})
		var retry chat.Ack
		s.Require().NoError(json.Unmarshal(completion.Result, &retry))
		s.Require().True(retry.Duplicate)
		s.Require().Zero(retry.Delivered)
	})

	s.Run("Step 4: bob reads, alice is told", func() {
		s.Step("bob marks the conversation as read")
		completion := bob.Call(services.MethodMarkRead, services.MarkReadArgs{OtherUserID: "alice"})
		s.Require().Nil(completion.Error)
		var result services.MarkReadResult
		s.Require().NoError(json.Unmarshal(completion.Result, &result))
		s.Require().Equal(2, result.Marked)

		frame := alicePhone.AwaitEvent(string(chat.MessagesRead))
		var read chat.ReadPayload
		s.Require().NoError(json.Unmarshal(frame.Payload, &read))
		s.Require().Equal("bob", read.ReaderID)
	})
}

func (s *messagingSuite) TestOfflineCatchUp() {
	alice := s.Connect("alice", "member")
	defer alice.Close()

	s.Step("alice writes to an offline user")
	for _, body := range []string{"first", "second", "third"} {
		completion := alice.Call(services.MethodSendDirectMessage,
			services.SendDirectMessageArgs{RecipientID: "carol", Body: body})
		s.Require().Nil(completion.Error)
	}

	s.Step("carol connects and pages through her history")
	carol := s.Connect("carol", "member")
	defer carol.Close()

	completion := carol.Call(services.MethodUnreadCount, struct{}{})
	var unread services.CountResult
	s.Require().NoError(json.Unmarshal(completion.Result, &unread))
	s.Require().Equal(3, unread.Count)

	completion = carol.Call(services.MethodGetHistory, services.GetHistoryArgs{OtherUserID: "alice", Limit: 2})
	var page services.HistoryResult
	s.Require().NoError(json.Unmarshal(completion.Result, &page))
	s.Require().Len(page.Messages, 2)
	s.Require().Equal("second", page.Messages[0].Body)
	s.Require().Equal("third", page.Messages[1].Body)
	s.Require().NotEmpty(page.NextCursor)

	completion = carol.Call(services.MethodGetHistory,
		services.GetHistoryArgs{OtherUserID: "alice", Limit: 2, Cursor: page.NextCursor})
	var older services.HistoryResult
	s.Require().NoError(json.Unmarshal(completion.Result, &older))
	s.Require().Len(older.Messages, 1)
	s.Require().Equal("first", older.Messages[0].Body)
	s.Require().Empty(older.NextCursor)
}

func (s *messagingSuite) TestAdminReachesConnectedClients() {
	member := s.Connect("alice", "member")
	defer member.Close()
	coach := s.Connect("bob", "coach")
	defer coach.Close()
	admin := s.Admin()
	ctx := s.T().Context()

	s.Step("broadcast a system notification")
	delivered, err := admin.BroadcastSystemNotification(ctx, "Gym closed", "Holiday", "info")
	s.Require().NoError(err)
	s.Require().Equal(int64(2), delivered)
	member.AwaitEvent(string(chat.SystemNotification))
	coach.AwaitEvent(string(chat.SystemNotification))

	s.Step("push to coaches only")
	delivered, err = admin.PushToRole(ctx, "coach", map[string]any{"class": "spin"})
	s.Require().NoError(err)
	s.Require().Equal(int64(1), delivered)
	coach.AwaitEvent(string(chat.RoleNotification))

	s.Step("presence follows the sockets")
	online, err := admin.Presence(ctx, "alice")
	s.Require().NoError(err)
	s.Require().Equal(int64(1), online)
}

func (s *messagingSuite) TestModerationAndAssistant() {
	alice := s.Connect("alice", "member")
	defer alice.Close()
	bob := s.Connect("bob", "member")
	defer bob.Close()

	s.Step("a censored word never reaches the recipient")
	completion := alice.Call(services.MethodSendDirectMessage,
		services.SendDirectMessageArgs{RecipientID: "bob", Body: "this is crap"})
	s.Require().Nil(completion.Error)
	frame := bob.AwaitEvent(string(chat.ReceiveDirectMessage))
	var payload chat.MessagePayload
	s.Require().NoError(json.Unmarshal(frame.Payload, &payload))
	s.Require().NotContains(payload.Body, "crap")

	s.Step("the assistant answers asynchronously")
	completion = alice.Call(services.MethodAskAssistant, services.AskAssistantArgs{Prompt: "best warm-up?"})
	s.Require().Nil(completion.Error)
	reply := alice.AwaitEvent(string(chat.AssistantReply))
	var answer chat.AssistantReplyPayload
	s.Require().NoError(json.Unmarshal(reply.Payload, &answer))
	s.Require().Contains(answer.Reply, "best warm-up?")
}
