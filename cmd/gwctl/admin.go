package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/xiaonanln/gwactor/engine/admin"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/consts"
)

func adminURL(cmd string) string {
	addr := args.adminAddr
	if addr == "" {
		if args.configFile != "" {
			config.SetConfigFile(args.configFile)
		}
		addr = config.GetServer().HTTPAddr
	}
	if addr == "" {
		showMsgAndQuit("admin address is not configured")
	}
	return "http://" + addr + admin.APIPath + cmd
}

// adminCommand runs the admin command on the server and prints the result
func adminCommand(cmd string, params map[string]string) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	httpClient := &http.Client{Timeout: consts.ADMIN_COMMAND_TIMEOUT + time.Second*5}
	resp, err := httpClient.PostForm(adminURL(cmd), form)
	checkErrorOrQuit(err, "admin command "+cmd+" failed")
	defer resp.Body.Close()

	var result admin.Result
	err = json.NewDecoder(resp.Body).Decode(&result)
	checkErrorOrQuit(err, "decode admin result failed")
	if result.Code != admin.CodeSuccess {
		showMsgAndQuit("%s: code %d: %s", cmd, result.Code, result.Msg)
	}
	data, _ := json.MarshalIndent(result.Data, "", "  ")
	showMsg("%s: %s", cmd, data)
}
