package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/snowflake"
)

// newTestRouter 组装一套带内存替身的路由
func newTestRouter(t *testing.T, convDAO *fakeConvDAO) (*ConversationRouter, *Hub, *PresenceTracker, *fakeArchiver) {
	t.Helper()

	ids, err := snowflake.NewSnowflake(0)
	if err != nil {
		t.Fatalf("初始化雪花ID失败: %v", err)
	}

	hub := NewHub(nopLogger{})
	presence := NewPresenceTracker(func(event model.PresenceEvent) {
		if payload, err := json.Marshal(event); err == nil {
			hub.Publish(PresenceTopic, payload)
		}
	})
	guard := NewAuthGuard(convDAO, nopLogger{})
	archiver := &fakeArchiver{}
	router := NewConversationRouter(convDAO, guard, hub, presence, NewHTMLRenderer(), archiver, ids, nopLogger{})
	return router, hub, presence, archiver
}

// TestSubscribeUnknownConversation 订阅不存在的会话返回not found
func TestSubscribeUnknownConversation(t *testing.T) {
	convDAO := newFakeConvDAO()
	router, _, _, _ := newTestRouter(t, convDAO)

	c, _ := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	defer c.Close()

	err := router.Subscribe(context.Background(), c, "no-such-key")
	if !errors.Is(err, model.ErrConversationNotFound) {
		t.Errorf("应返回ErrConversationNotFound，得到%v", err)
	}
}

// TestSubscribeForbidden 无权身份订阅被拒
func TestSubscribeForbidden(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, _ := newTestRouter(t, convDAO)

	c, _ := newTestClient(nextClientID(), &model.Customer{ID: 200}, nil)
	defer c.Close()

	err := router.Subscribe(context.Background(), c, "conv-1")
	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("应返回ErrForbidden，得到%v", err)
	}
}

// TestSubscribeDuplicateIdempotent 重复订阅视为成功且在线计数不翻倍
func TestSubscribeDuplicateIdempotent(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv.ID, 7)
	router, _, presence, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	c, _ := newTestClient(nextClientID(), nil, admin)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("首次订阅失败: %v", err)
	}
	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("重复订阅应视为成功: %v", err)
	}

	// 计数没翻倍：一次退订就应下线
	router.Unsubscribe(context.Background(), c, "conv-1")
	if presence.IsOnline(7) {
		t.Errorf("重复订阅不应重复计数")
	}
}

// TestSubscribeAdminGoesOnline 管理员订阅计入在线状态，退订归还
func TestSubscribeAdminGoesOnline(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv.ID, 7)
	router, _, presence, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	c, _ := newTestClient(nextClientID(), nil, admin)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if !presence.IsOnline(7) {
		t.Errorf("管理员订阅后应在线")
	}

	router.Unsubscribe(context.Background(), c, "conv-1")
	if presence.IsOnline(7) {
		t.Errorf("管理员退订后应下线")
	}
}

// TestCustomerSubscribeNoPresence 顾客订阅不计入在线状态
func TestCustomerSubscribeNoPresence(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, presence, _ := newTestRouter(t, convDAO)

	c, _ := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if len(presence.ListOnline()) != 0 {
		t.Errorf("顾客不应出现在在线列表")
	}
}

// TestSpeakRequiresSubscription 未订阅时发言被丢弃且不落库
func TestSpeakRequiresSubscription(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, _ := newTestRouter(t, convDAO)

	c, _ := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer c.Close()

	err := router.Speak(context.Background(), c, "conv-1", "你好")
	if !errors.Is(err, model.ErrNotSubscribed) {
		t.Errorf("应返回ErrNotSubscribed，得到%v", err)
	}
	if convDAO.messageCount() != 0 {
		t.Errorf("未订阅的发言不应落库")
	}
}

// TestSpeakPersistsThenBroadcasts 发言先落库后广播，归档事件同步发出
func TestSpeakPersistsThenBroadcasts(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, archiver := newTestRouter(t, convDAO)

	speaker, speakerConn := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer speaker.Close()

	if err := router.Subscribe(context.Background(), speaker, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	if err := router.Speak(context.Background(), speaker, "conv-1", "订单还没发货"); err != nil {
		t.Fatalf("发言失败: %v", err)
	}

	if convDAO.messageCount() != 1 {
		t.Fatalf("消息应已落库")
	}
	if !waitForFrames(speakerConn, 1, time.Second) {
		t.Fatalf("发言者作为订阅者也应收到广播")
	}

	var event model.MessageEvent
	if err := json.Unmarshal(speakerConn.frame(0), &event); err != nil {
		t.Fatalf("解析广播帧失败: %v", err)
	}
	if event.Type != model.EventMessage || event.ConversationKey != "conv-1" {
		t.Errorf("广播事件内容不符: %+v", event)
	}
	if event.SenderKind != model.SenderKindCustomer || event.SenderID != 100 {
		t.Errorf("发送者身份不符: %+v", event)
	}
	if event.MessageID == 0 {
		t.Errorf("广播事件应带落库后的消息ID")
	}

	if archiver.count() != 1 {
		t.Fatalf("应发出一条归档事件")
	}
	var archive model.ArchiveEvent
	if err := json.Unmarshal(archiver.values[0], &archive); err != nil {
		t.Fatalf("解析归档事件失败: %v", err)
	}
	if archive.Type != model.ArchiveEventType || archive.MessageID != event.MessageID || archive.Content != "订单还没发货" {
		t.Errorf("归档事件内容不符: %+v", archive)
	}
	if archiver.topics[0] != model.ArchiveTopic {
		t.Errorf("归档topic不符: %s", archiver.topics[0])
	}
}

// TestSpeakOrderingMatchesPersistence 同一会话内广播顺序与落库顺序一致
func TestSpeakOrderingMatchesPersistence(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, _ := newTestRouter(t, convDAO)

	speaker, _ := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	listener, listenerConn := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer speaker.Close()
	defer listener.Close()

	if err := router.Subscribe(context.Background(), speaker, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Subscribe(context.Background(), listener, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	const total = 5
	for i := 0; i < total; i++ {
		if err := router.Speak(context.Background(), speaker, "conv-1", "消息"); err != nil {
			t.Fatalf("第%d次发言失败: %v", i, err)
		}
	}

	if !waitForFrames(listenerConn, total, time.Second) {
		t.Fatalf("应收到%d帧，实际%d", total, listenerConn.frameCount())
	}

	var lastID int64
	for i := 0; i < total; i++ {
		var event model.MessageEvent
		if err := json.Unmarshal(listenerConn.frame(i), &event); err != nil {
			t.Fatalf("解析第%d帧失败: %v", i, err)
		}
		if event.MessageID <= lastID {
			t.Errorf("第%d帧消息ID应严格递增: %d <= %d", i, event.MessageID, lastID)
		}
		lastID = event.MessageID
	}
}

// TestAdminFirstReplyActivatesConversation 管理员首次应答把会话从open转为active
func TestAdminFirstReplyActivatesConversation(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv.ID, 7)
	router, _, _, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	c, _ := newTestClient(nextClientID(), nil, admin)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Speak(context.Background(), c, "conv-1", "您好，请问有什么可以帮您"); err != nil {
		t.Fatalf("发言失败: %v", err)
	}

	got, err := convDAO.GetConversationByKey(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if got.Status != model.ConversationStatusActive {
		t.Errorf("管理员应答后会话应为active，得到%s", got.Status)
	}
}

// TestSpeakReauthorizesEveryTime 授权被撤销后发言被丢弃
func TestSpeakReauthorizesEveryTime(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv.ID, 7)
	router, _, _, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	c, _ := newTestClient(nextClientID(), nil, admin)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	// 订阅后撤销参与者记录
	convDAO.removeParticipant(conv.ID, 7)

	err := router.Speak(context.Background(), c, "conv-1", "还在吗")
	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("授权撤销后发言应被拒，得到%v", err)
	}
	if convDAO.messageCount() != 0 {
		t.Errorf("被拒发言不应落库")
	}
}

// TestSpeakPersistenceFailure 落库失败不广播不归档，订阅关系保留
func TestSpeakPersistenceFailure(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, archiver := newTestRouter(t, convDAO)

	c, conn := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	convDAO.setCreateMessageErr(errors.New("数据库写入失败"))
	if err := router.Speak(context.Background(), c, "conv-1", "你好"); err == nil {
		t.Fatalf("落库失败时Speak应返回错误")
	}

	time.Sleep(50 * time.Millisecond)
	if conn.frameCount() != 0 {
		t.Errorf("落库失败不应广播，收到%d帧", conn.frameCount())
	}
	if archiver.count() != 0 {
		t.Errorf("落库失败不应归档")
	}

	// 订阅未被撕毁，恢复后能继续发言
	convDAO.setCreateMessageErr(nil)
	if err := router.Speak(context.Background(), c, "conv-1", "重试"); err != nil {
		t.Fatalf("恢复后发言失败: %v", err)
	}
	if convDAO.messageCount() != 1 {
		t.Errorf("恢复后的消息应落库")
	}
	if !waitForFrames(conn, 1, time.Second) {
		t.Errorf("恢复后的消息应广播")
	}
}

// TestTypingReauthorizesEveryTime 授权被撤销后typing被拒且不广播
func TestTypingReauthorizesEveryTime(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv.ID, 7)
	router, _, _, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	typist, _ := newTestClient(nextClientID(), nil, admin)
	listener, listenerConn := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer typist.Close()
	defer listener.Close()

	if err := router.Subscribe(context.Background(), typist, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Subscribe(context.Background(), listener, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	convDAO.removeParticipant(conv.ID, 7)

	err := router.Typing(context.Background(), typist, "conv-1")
	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("授权撤销后typing应被拒，得到%v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if listenerConn.frameCount() != 0 {
		t.Errorf("被拒的typing不应广播，收到%d帧", listenerConn.frameCount())
	}
}

// TestCustomerSpeakKeepsStatus 顾客发言不改变会话状态
func TestCustomerSpeakKeepsStatus(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, _ := newTestRouter(t, convDAO)

	c, _ := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Speak(context.Background(), c, "conv-1", "在吗"); err != nil {
		t.Fatalf("发言失败: %v", err)
	}

	got, err := convDAO.GetConversationByKey(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("查询会话失败: %v", err)
	}
	if got.Status != model.ConversationStatusOpen {
		t.Errorf("顾客发言不应改变会话状态，得到%s", got.Status)
	}
}

// TestTypingDoesNotPersist 输入中提示广播但不落库
func TestTypingDoesNotPersist(t *testing.T) {
	convDAO := newFakeConvDAO()
	convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	router, _, _, archiver := newTestRouter(t, convDAO)

	c, conn := newTestClient(nextClientID(), &model.Customer{ID: 100}, nil)
	defer c.Close()

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Typing(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("typing失败: %v", err)
	}

	if !waitForFrames(conn, 1, time.Second) {
		t.Fatalf("应收到typing帧")
	}
	var event model.TypingEvent
	if err := json.Unmarshal(conn.frame(0), &event); err != nil {
		t.Fatalf("解析typing帧失败: %v", err)
	}
	if event.Type != model.EventTyping || !event.Typing {
		t.Errorf("typing事件内容不符: %+v", event)
	}
	if convDAO.messageCount() != 0 {
		t.Errorf("typing不应落库")
	}
	if archiver.count() != 0 {
		t.Errorf("typing不应归档")
	}
}

// TestDisconnectReleasesPresence 断连释放全部订阅与在线计数
func TestDisconnectReleasesPresence(t *testing.T) {
	convDAO := newFakeConvDAO()
	conv1 := convDAO.addConversation("conv-1", 100, model.ConversationStatusOpen)
	conv2 := convDAO.addConversation("conv-2", 200, model.ConversationStatusOpen)
	convDAO.AddParticipant(context.Background(), conv1.ID, 7)
	convDAO.AddParticipant(context.Background(), conv2.ID, 7)
	router, hub, presence, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 7, Name: "客服甲"}
	c, _ := newTestClient(nextClientID(), nil, admin)

	if err := router.Subscribe(context.Background(), c, "conv-1"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if err := router.Subscribe(context.Background(), c, "conv-2"); err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	router.Disconnect(c)
	c.Close()

	if presence.IsOnline(7) {
		t.Errorf("断连后应下线")
	}
	if hub.SubscriberCount(ConversationTopic("conv-1")) != 0 || hub.SubscriberCount(ConversationTopic("conv-2")) != 0 {
		t.Errorf("断连后应清空全部订阅")
	}
}

// TestSubscribePresenceSnapshot 新订阅者先收到当前在线快照
func TestSubscribePresenceSnapshot(t *testing.T) {
	convDAO := newFakeConvDAO()
	router, _, presence, _ := newTestRouter(t, convDAO)

	presence.MarkOnline(&model.Admin{ID: 10, Name: "甲"})
	presence.MarkOnline(&model.Admin{ID: 20, Name: "乙"})

	c, conn := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	defer c.Close()

	router.SubscribePresence(c)
	if !waitForFrames(conn, 2, time.Second) {
		t.Fatalf("应收到2条快照，实际%d", conn.frameCount())
	}

	var first model.PresenceEvent
	if err := json.Unmarshal(conn.frame(0), &first); err != nil {
		t.Fatalf("解析快照失败: %v", err)
	}
	if first.Type != model.EventPresence || first.Status != model.PresenceStatusOnline {
		t.Errorf("快照内容不符: %+v", first)
	}

	// 快照之后的增量也能到达
	presence.MarkOnline(&model.Admin{ID: 30, Name: "丙"})
	if !waitForFrames(conn, 3, time.Second) {
		t.Errorf("快照后的增量应到达")
	}
}

// TestSubscribePresenceSnapshotUnderChurn 并发上下线期间订阅在线状态主题
// 新订阅者按接收顺序回放时，任何离线增量之前必然先见过该管理员的在线基线
func TestSubscribePresenceSnapshotUnderChurn(t *testing.T) {
	convDAO := newFakeConvDAO()
	router, _, presence, _ := newTestRouter(t, convDAO)

	admin := &model.Admin{ID: 99, Name: "客服甲"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			presence.MarkOnline(admin)
			presence.MarkOffline(admin)
		}
	}()

	c, conn := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	defer c.Close()
	router.SubscribePresence(c)
	<-done

	// 等存量增量穿过写循环
	time.Sleep(50 * time.Millisecond)

	online := make(map[int64]bool)
	for i := 0; i < conn.frameCount(); i++ {
		var event model.PresenceEvent
		if err := json.Unmarshal(conn.frame(i), &event); err != nil {
			t.Fatalf("解析第%d帧失败: %v", i, err)
		}
		if event.Status == model.PresenceStatusOffline && !online[event.AdminID] {
			t.Fatalf("第%d帧：离线增量先于在线基线到达", i)
		}
		online[event.AdminID] = event.Status == model.PresenceStatusOnline
	}
}
