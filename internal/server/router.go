package server

import (
	"time"

	"github.com/kataras/iris/v12"

	"github.com/aa547887/GameSpace-sub003/internal/auth"
	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
	"github.com/aa547887/GameSpace-sub003/internal/infra/mq"
	"github.com/aa547887/GameSpace-sub003/internal/infra/redis"
	"github.com/aa547887/GameSpace-sub003/internal/middleware"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
	"github.com/aa547887/GameSpace-sub003/internal/service"
	webcontrollers "github.com/aa547887/GameSpace-sub003/web/controllers"
)

// RegisterRoutes 注册前台所有 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 静态资源与首页
	app.HandleDir("/assets", iris.Dir("./web/assets"))
	app.Get("/", func(ctx iris.Context) {
		_ = ctx.ServeFile("./web/index.html")
	})

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	promotionRepo := mysql.NewPromotionRepository(db)

	signer := gateway.NewSigner(&cfg.Payment)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo)
	cartSvc := service.NewCartService(redisClient, productRepo)
	checkoutSvc := service.NewCheckoutService(db, cartSvc, promotionRepo, signer, &cfg.Payment)
	paymentSvc := service.NewPaymentService(db, signer, mqConn, &cfg.Payment)

	// JWT 解析结果走 Redis 缓存，多实例部署时按一致性哈希分节点
	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	// ---------------- 金流网关进站端点 ----------------
	// 网关可能用 GET 或 POST 送表单，两个端点都要接。
	paymentController := webcontrollers.NewPaymentController(paymentSvc)
	app.HandleMany("GET POST", "/payment/notify", paymentController.Notify)
	app.HandleMany("GET POST", "/payment/return", paymentController.Return)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", middleware.LoginRateLimit(), func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": u})
	})

	api.Post("/login", middleware.LoginRateLimit(), func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 商品墙（支持按平台、分类筛选）
	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListStorefront(ctx.Request().Context(),
			ctx.URLParam("platform"), ctx.URLParam("category"))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{id:uint64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetVisible(ctx.Request().Context(), int64(pid))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "product not found"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 需要登录的接口
	authAPI := api.Party("/", middleware.RequireLogin(&cfg.JWT, tokenCache))

	// ---------------- 购物车 ----------------

	authAPI.Get("/cart", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		items, err := cartSvc.List(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": items})
	})

	authAPI.Put("/cart/{id:uint64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Quantity int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := cartSvc.SetItem(ctx.Request().Context(), userID, int64(pid), req.Quantity); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------------- 结账 ----------------

	// 把购物车转成订单，并回传跳转网关所需的表单栏位
	authAPI.Post("/checkout", middleware.CheckoutRateLimit(), func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		o, err := checkoutSvc.Checkout(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		form := checkoutSvc.BuildPaymentForm(o)
		fields := make(map[string]string, len(form))
		for k := range form {
			fields[k] = form.Get(k)
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"order":        o,
			"checkout_url": checkoutSvc.CheckoutURL(),
			"fields":       fields,
		}})
	})

	// ---------------- 订单查询 ----------------

	authAPI.Get("/orders", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := orderSvc.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/orders/{id:uint64}", func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		o, err := orderSvc.GetByID(ctx.Request().Context(), int64(oid))
		if err != nil || o.UserID != userID {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "order not found"})
			return
		}
		items, err := orderSvc.ListItems(ctx.Request().Context(), o.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		history, err := orderSvc.ListHistory(ctx.Request().Context(), o.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"order":   o,
			"items":   items,
			"history": history,
		}})
	})

	// ---------------- 前台页面路由 ----------------

	userController := webcontrollers.NewUserController(userSvc)
	app.Get("/login", userController.ShowLogin)
	app.Get("/register", userController.ShowRegister)
	app.Get("/user/login", userController.ShowLogin)
	app.Get("/user/register", userController.ShowRegister)
	app.Get("/user/manage", userController.ShowManage)
	app.Get("/user/logout", userController.Logout)
	app.Post("/user/login", userController.PostLogin)
	app.Post("/user/add", userController.PostAdd)
}
