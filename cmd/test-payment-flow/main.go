package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
)

const baseURL = "http://localhost:8080"

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// 对本地服务完整跑一遍金流确认流程：
// 正常 notify、重复投递、金额不符、伪造签章，检查应答字面值。
func main() {
	fmt.Println("=== 金流对账流程测试 ===")
	fmt.Println()

	cfg, err := config.Load("./config")
	if err != nil {
		fmt.Printf("❌ 读取配置失败: %v\n", err)
		return
	}
	signer := gateway.NewSigner(&cfg.Payment)

	// 1. 注册/登录
	fmt.Println("步骤1: 注册/登录用户...")
	token, err := registerAndLogin("payflowuser", "payflowpass")
	if err != nil {
		fmt.Printf("❌ 登录失败: %v\n", err)
		return
	}
	fmt.Println("✅ 登录成功")

	// 2. 加入购物车并结账
	fmt.Println("步骤2: 加入购物车并结账...")
	if err := putJSON("/api/cart/1", token, map[string]int64{"quantity": 1}); err != nil {
		fmt.Printf("❌ 加入购物车失败: %v\n", err)
		return
	}
	orderCode, amount, err := checkout(token)
	if err != nil {
		fmt.Printf("❌ 结账失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 订单建立: %s 应付 %s\n", orderCode, amount)

	tradeNo := fmt.Sprintf("T%d", time.Now().Unix())

	// 3. 正常 notify
	fmt.Println("步骤3: 送出正常 notify...")
	ack := sendNotify(signer, cfg, orderCode, tradeNo, amount, "1")
	report(ack == gateway.AckSuccess, "应答 "+ack)

	// 4. 重复投递同一笔交易
	fmt.Println("步骤4: 重复投递同一笔交易...")
	ack = sendNotify(signer, cfg, orderCode, tradeNo, amount, "1")
	report(ack == gateway.AckSuccess, "应答 "+ack+"（应止住重送）")

	// 5. 金额不符
	fmt.Println("步骤5: 金额不符的事件...")
	ack = sendNotify(signer, cfg, orderCode, tradeNo+"X", "1", "1")
	report(ack == gateway.AckSuccess, "应答 "+ack+"（业务拒绝也要止住重送）")

	// 6. 伪造签章
	fmt.Println("步骤6: 伪造签章...")
	form := buildForm(cfg, orderCode, tradeNo+"F", amount, "1")
	form.Set(gateway.SignField, "DEADBEEF")
	ack = postForm("/payment/notify", form)
	report(ack == gateway.AckSignatureFail, "应答 "+ack)

	fmt.Println()
	fmt.Println("=== 测试结束，请对照后台审计流水确认每一步都有记录 ===")
}

func report(ok bool, msg string) {
	if ok {
		fmt.Println("✅ " + msg)
	} else {
		fmt.Println("❌ " + msg)
	}
}

func buildForm(cfg *config.Config, orderCode, tradeNo, amount, rtnCode string) url.Values {
	form := url.Values{}
	form.Set("MerchantID", cfg.Payment.MerchantID)
	form.Set("MerchantTradeNo", orderCode)
	form.Set("TradeNo", tradeNo)
	form.Set("TradeAmt", amount)
	form.Set("RtnCode", rtnCode)
	form.Set("RtnMsg", "交易成功")
	form.Set("PaymentDate", time.Now().Format("2006/01/02 15:04:05"))
	return form
}

func sendNotify(signer *gateway.Signer, cfg *config.Config, orderCode, tradeNo, amount, rtnCode string) string {
	form := buildForm(cfg, orderCode, tradeNo, amount, rtnCode)
	form.Set(gateway.SignField, signer.Sign(form))
	return postForm("/payment/notify", form)
}

func postForm(path string, form url.Values) string {
	resp, err := http.Post(baseURL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "error: " + err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func registerAndLogin(username, password string) (string, error) {
	// 注册失败不管（可能已存在），直接登录
	_, _ = httpJSON("POST", "/api/register", "", map[string]string{
		"username": username, "password": password,
	})
	data, err := httpJSON("POST", "/api/login", "", map[string]string{
		"username": username, "password": password,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func checkout(token string) (string, string, error) {
	data, err := httpJSON("POST", "/api/checkout", token, map[string]string{})
	if err != nil {
		return "", "", err
	}
	var out struct {
		Order struct {
			OrderCode  string `json:"OrderCode"`
			GrandTotal string `json:"GrandTotal"`
		} `json:"order"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", "", err
	}
	return out.Order.OrderCode, out.Order.GrandTotal, nil
}

func putJSON(path, token string, payload interface{}) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPut, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

func httpJSON(method, path, token string, payload interface{}) (json.RawMessage, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bad response: %s", raw)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("api error: %s", out.Msg)
	}
	return out.Data, nil
}
