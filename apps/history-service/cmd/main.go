package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"shopchat/apps/history-service/consumer"
	"shopchat/apps/history-service/dao"
	"shopchat/apps/history-service/handler"
	"shopchat/apps/history-service/service"
	"shopchat/pkg/server"
	"shopchat/pkg/telemetry"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("history-service")

	// 初始化链路追踪
	if err := telemetry.InitGlobal(telemetry.DefaultConfig("history-service")); err != nil {
		panic("Failed to initialize telemetry: " + err.Error())
	}
	defer telemetry.ShutdownGlobal(context.Background())

	// 启用HTTP服务器
	app.EnableHTTP()

	// 启用gRPC服务器，当前只承载健康检查
	app.EnableGRPC()

	// 初始化DAO层，归档落MongoDB
	historyDAO := dao.NewHistoryDAO(app.GetMongoDB())
	if err := historyDAO.EnsureIndexes(context.Background()); err != nil {
		panic("Failed to ensure mongo indexes: " + err.Error())
	}

	// 初始化Service层
	svc := service.NewService(historyDAO, app.GetLogger())

	// 启动归档消费者
	archiveConsumer := consumer.NewArchiveConsumer(historyDAO, app.GetLogger())
	if err := archiveConsumer.Start(context.Background(), app.GetConfig().Kafka.Brokers); err != nil {
		panic("Failed to start archive consumer: " + err.Error())
	}

	// 初始化Handler
	httpHandler := handler.NewHTTPHandler(svc, app.GetAdminAuthMiddleware(), app.GetLogger())

	// 注册HTTP路由
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
