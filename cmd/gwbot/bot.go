package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/client"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/proto"
)

const requestTimeout = 10 * time.Second

// ClientBot logs in and keeps sending requests
type ClientBot struct {
	id     int
	waiter *sync.WaitGroup
	client *client.Client
	user   proto.UserInfo
}

func newClientBot(id int, waiter *sync.WaitGroup) *ClientBot {
	return &ClientBot{
		id:     id,
		waiter: waiter,
	}
}

func (bot *ClientBot) String() string {
	return fmt.Sprintf("ClientBot<%d>", bot.id)
}

func (bot *ClientBot) run(ctx context.Context) {
	defer bot.waiter.Done()

	gwlog.Infof("%s is running ...", bot)
	for { // retry until connected
		c, err := client.Dial(ctx, args.network, args.addr)
		if err == nil {
			bot.client = c
			break
		}
		gwlog.Errorf("%s: connect failed: %s", bot, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second * time.Duration(1+rand.Intn(10))):
		}
	}
	defer bot.client.Close()

	if err := bot.login(ctx); err != nil {
		gwlog.Errorf("%s: login failed: %v", bot, err)
		return
	}
	for round := 0; args.rounds == 0 || round < args.rounds; round++ {
		if ctx.Err() != nil {
			return
		}
		if err := bot.doSomething(ctx); err != nil {
			gwlog.Errorf("%s: %v", bot, err)
			return
		}
	}
}

func (bot *ClientBot) request(ctx context.Context, thing string, msg proto.Message) (proto.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	t0 := time.Now()
	resp, err := bot.client.Request(ctx, msg)
	if err != nil {
		return nil, errors.Wrap(err, thing)
	}
	recordThingTime(thing, time.Since(t0))
	if errResp, ok := resp.(*proto.RespErrorCode); ok {
		return nil, errors.Wrap(errResp.ErrCode, thing)
	}
	if !quiet {
		gwlog.Debugf("%s: %s => %T %+v", bot, thing, resp, resp)
	}
	return resp, nil
}

func (bot *ClientBot) login(ctx context.Context) error {
	resp, err := bot.request(ctx, "Login", &proto.ReqLogin{
		UserName: fmt.Sprintf("bot%d", bot.id),
		Platform: "bot",
		Device:   fmt.Sprintf("device%d", bot.id),
	})
	if err != nil {
		return err
	}
	login, ok := resp.(*proto.RespLogin)
	if !ok {
		return errors.Errorf("unexpected login response %T", resp)
	}
	bot.user = login.UserInfo
	gwlog.Infof("%s: logged in as role %d (%s) of account %d", bot, bot.user.RoleId, bot.user.RoleName, bot.user.AccountId)
	return nil
}

func (bot *ClientBot) doSomething(ctx context.Context) error {
	var err error
	switch rand.Intn(4) {
	case 0:
		_, err = bot.request(ctx, "Heartbeat", &proto.ReqHeartbeat{TimeTick: time.Now().UnixMilli()})
	case 1:
		_, err = bot.request(ctx, "BagInfo", &proto.ReqBagInfo{})
	case 2:
		_, err = bot.request(ctx, "AddItem", &proto.ReqAddItem{ItemId: int32(1 + rand.Intn(10)), Count: int64(1 + rand.Intn(5))})
	case 3:
		_, err = bot.request(ctx, "WorldLevel", &proto.ReqWorldLevel{})
	}
	if errors.Cause(err) == proto.ItemNotEnough {
		return nil
	}
	return err
}
