package service

import (
	"context"
	"testing"

	"shopchat/apps/history-service/model"
	"shopchat/pkg/logger"
)

type nopLogger struct{}

func (nopLogger) Info(ctx context.Context, msg string, fields ...logger.Field)  {}
func (nopLogger) Error(ctx context.Context, msg string, fields ...logger.Field) {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...logger.Field)  {}
func (nopLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {}
func (nopLogger) Fatal(ctx context.Context, msg string, fields ...logger.Field) {}
func (l nopLogger) WithContext(ctx context.Context) logger.Logger               { return l }

// recordingDAO 记录查询参数的DAO替身
type recordingDAO struct {
	limit  int64
	offset int64
}

func (d *recordingDAO) ArchiveMessage(ctx context.Context, msg *model.ArchivedMessage) error {
	return nil
}

func (d *recordingDAO) GetConversationMessages(ctx context.Context, conversationKey string, limit, offset int64) ([]*model.ArchivedMessage, int64, error) {
	d.limit = limit
	d.offset = offset
	return nil, 0, nil
}

func (d *recordingDAO) GetMessage(ctx context.Context, messageID int64) (*model.ArchivedMessage, error) {
	return nil, nil
}

func (d *recordingDAO) EnsureIndexes(ctx context.Context) error { return nil }

// TestGetConversationMessagesClampsPaging 非法分页参数回落到默认值
func TestGetConversationMessagesClampsPaging(t *testing.T) {
	cases := []struct {
		limit, offset         int64
		wantLimit, wantOffset int64
	}{
		{0, 0, 50, 0},
		{-1, -5, 50, 0},
		{500, 10, 50, 10},
		{20, 5, 20, 5},
	}

	for _, tc := range cases {
		dao := &recordingDAO{}
		svc := NewService(dao, nopLogger{})
		if _, _, err := svc.GetConversationMessages(context.Background(), "conv-1", tc.limit, tc.offset); err != nil {
			t.Fatalf("查询失败: %v", err)
		}
		if dao.limit != tc.wantLimit || dao.offset != tc.wantOffset {
			t.Errorf("limit=%d offset=%d 应钳制为(%d,%d)，得到(%d,%d)",
				tc.limit, tc.offset, tc.wantLimit, tc.wantOffset, dao.limit, dao.offset)
		}
	}
}
