package server

import (
	"errors"
	"strconv"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
	"github.com/aa547887/GameSpace-sub003/internal/infra/mq"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
	"github.com/aa547887/GameSpace-sub003/internal/service"
)

// productRequest 后台商品创建/更新请求
type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"` // decimal 字符串，如 "1490.00"
	Stock       int64   `json:"stock"`
	Platform    string  `json:"platform"`
	Category    string  `json:"category"`
	Status      *int    `json:"status"`
}

func (r *productRequest) applyTo(p *product.Product, partial bool) error {
	if r.Name != "" || !partial {
		p.Name = r.Name
	}
	if r.Description != "" || !partial {
		p.Description = r.Description
	}
	if r.Price != "" {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return err
		}
		p.Price = price
	}
	if r.Stock != 0 || !partial {
		p.Stock = r.Stock
	}
	if r.Platform != "" {
		if !product.ValidPlatform(r.Platform) {
			return errors.New("unknown platform: " + r.Platform)
		}
		p.Platform = r.Platform
	}
	if r.Category != "" {
		if !product.ValidCategory(r.Category) {
			return errors.New("unknown category: " + r.Category)
		}
		p.Category = r.Category
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	return nil
}

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	promotionRepo := mysql.NewPromotionRepository(db)

	signer := gateway.NewSigner(&cfg.Payment)

	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo)
	promotionSvc := service.NewPromotionService(promotionRepo, productRepo)
	paymentSvc := service.NewPaymentService(db, signer, mqConn, &cfg.Payment)

	// 静态资源
	app.HandleDir("/assets", iris.Dir("./web/admin/assets"))
	app.Get("/", func(ctx iris.Context) {
		_ = ctx.ServeFile("./web/admin/index.html")
	})

	api := app.Party("/api")

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/products", func(ctx iris.Context) {
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p := &product.Product{}
		if err := req.applyTo(p, false); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/products/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "product not found"})
			return
		}
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := req.applyTo(p, true); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Update(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/products/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := productSvc.Delete(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 促销活动管理 ----------

	api.Get("/promotions", func(ctx iris.Context) {
		list, err := promotionSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/promotions", func(ctx iris.Context) {
		var req service.CreatePromotionRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p, err := promotionSvc.CreatePromotion(ctx.Request().Context(), &req)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Post("/promotions/refresh", func(ctx iris.Context) {
		if err := promotionSvc.RefreshStatus(ctx.Request().Context()); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api.Delete("/promotions/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := promotionSvc.Delete(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 订单管理 ----------

	api.Get("/orders", func(ctx iris.Context) {
		limitStr := ctx.URLParamDefault("limit", "20")
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			limit = 20
		}
		list, err := orderSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/orders/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		o, err := orderSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "order not found"})
			return
		}
		items, _ := orderSvc.ListItems(ctx.Request().Context(), o.ID)
		history, _ := orderSvc.ListHistory(ctx.Request().Context(), o.ID)
		txns, _ := paymentSvc.ListTransactionsByOrder(ctx.Request().Context(), o.ID)
		audits, _ := paymentSvc.ListAuditsByOrder(ctx.Request().Context(), o.ID)
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"order":    o,
			"items":    items,
			"history":  history,
			"payments": txns,
			"audits":   audits,
		}})
	})

	// 推进出货状态（同一个追加器保证不会写出自我转移的记录）
	api.Post("/orders/{id:uint64}/status", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		var req struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := orderSvc.ChangeStatus(ctx.Request().Context(), int64(id), req.Status, req.Note); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 金流查询 ----------

	api.Get("/payments", func(ctx iris.Context) {
		limit, _ := strconv.Atoi(ctx.URLParamDefault("limit", "20"))
		list, err := paymentSvc.ListRecentTransactions(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/payment-audits", func(ctx iris.Context) {
		limit, _ := strconv.Atoi(ctx.URLParamDefault("limit", "50"))
		list, err := paymentSvc.ListRecentAudits(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 监控 ----------

	api.Get("/monitor", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().Snapshot()})
	})
}
