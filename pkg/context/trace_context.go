package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 上下文键类型
type contextKey string

const (
	// 业务相关的上下文键
	TraceIDKey         contextKey = "trace_id"
	RequestIDKey       contextKey = "request_id"
	ConnIDKey          contextKey = "conn_id"
	CustomerIDKey      contextKey = "customer_id"
	AdminIDKey         contextKey = "admin_id"
	ConversationKeyKey contextKey = "conversation_key"

	// 服务相关的上下文键
	ServiceNameKey contextKey = "service_name"
)

// WithTraceID 在context中设置TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("trace.id", traceID))
	}

	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID 从context中获取TraceID
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	// 优先从OpenTelemetry span中获取
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}

	return ""
}

// WithRequestID 在context中设置RequestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = GenerateRequestID()
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("request.id", requestID))
	}

	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从context中获取RequestID
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithConnID 在context中设置WebSocket连接ID
func WithConnID(ctx context.Context, connID string) context.Context {
	if connID == "" {
		return ctx
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("conn.id", connID))
	}

	return context.WithValue(ctx, ConnIDKey, connID)
}

// GetConnID 从context中获取WebSocket连接ID
func GetConnID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if connID, ok := ctx.Value(ConnIDKey).(string); ok {
		return connID
	}
	return ""
}

// WithCustomerID 在context中设置顾客ID
func WithCustomerID(ctx context.Context, customerID int64) context.Context {
	if customerID <= 0 {
		return ctx
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("customer.id", customerID))
	}

	return context.WithValue(ctx, CustomerIDKey, customerID)
}

// GetCustomerID 从context中获取顾客ID
func GetCustomerID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if customerID, ok := ctx.Value(CustomerIDKey).(int64); ok {
		return customerID
	}
	return 0
}

// WithAdminID 在context中设置管理员ID
func WithAdminID(ctx context.Context, adminID int64) context.Context {
	if adminID <= 0 {
		return ctx
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("admin.id", adminID))
	}

	return context.WithValue(ctx, AdminIDKey, adminID)
}

// GetAdminID 从context中获取管理员ID
func GetAdminID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if adminID, ok := ctx.Value(AdminIDKey).(int64); ok {
		return adminID
	}
	return 0
}

// WithConversationKey 在context中设置会话key
func WithConversationKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("conversation.key", key))
	}

	return context.WithValue(ctx, ConversationKeyKey, key)
}

// GetConversationKey 从context中获取会话key
func GetConversationKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if key, ok := ctx.Value(ConversationKeyKey).(string); ok {
		return key
	}
	return ""
}

// WithServiceName 在context中设置服务名
func WithServiceName(ctx context.Context, serviceName string) context.Context {
	if serviceName == "" {
		return ctx
	}
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

// GetServiceName 从context中获取服务名
func GetServiceName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

// GenerateTraceID 生成TraceID
func GenerateTraceID() string {
	return uuid.New().String()
}

// GenerateRequestID 生成RequestID
func GenerateRequestID() string {
	return uuid.New().String()
}
