// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

//go:build integration

package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/driftgate/driftgate/internal/account"
	"github.com/driftgate/driftgate/internal/login"
	"github.com/driftgate/driftgate/internal/social"
	"github.com/driftgate/driftgate/internal/transport"
)

// testEnv is one running driftgate stack on ephemeral ports.
type testEnv struct {
	ctx    context.Context
	cancel context.CancelFunc

	accounts    *account.FileStore
	coordinator *login.Server
	transport   *transport.Server
	status      *transport.StatusServer

	done chan struct{}
}

func startEnv() *testEnv {
	ctx, cancel := context.WithCancel(context.Background())

	accountsPath := filepath.Join(GinkgoT().TempDir(), "accounts.yaml")
	accounts, err := account.OpenFileStore(accountsPath)
	Expect(err).NotTo(HaveOccurred())

	coordinator := login.NewServer(login.Config{
		Accounts: accounts,
		Social:   social.NewNetwork(),
		MenuData: login.MenuData{Classes: []string{"light", "medium", "heavy"}},
	})

	transportServer := transport.NewServer(transport.Config{
		PlayerAddr:   "127.0.0.1:0",
		LauncherAddr: "127.0.0.1:0",
		AuthCodeAddr: "127.0.0.1:0",
	}, coordinator.Queue())

	statusServer := transport.NewStatusServer("127.0.0.1:0", coordinator.Queue())
	Expect(statusServer.Start()).To(Succeed())

	env := &testEnv{
		ctx:         ctx,
		cancel:      cancel,
		accounts:    accounts,
		coordinator: coordinator,
		transport:   transportServer,
		status:      statusServer,
		done:        make(chan struct{}),
	}

	go func() {
		defer GinkgoRecover()
		Expect(coordinator.Run(ctx)).To(Succeed())
	}()
	go func() {
		defer close(env.done)
		defer GinkgoRecover()
		Expect(transportServer.Run(ctx)).To(Succeed())
	}()

	Eventually(func() bool {
		return transportServer.Addr("player") != "" &&
			transportServer.Addr("launcher") != "" &&
			transportServer.Addr("authcode") != ""
	}).WithTimeout(2 * time.Second).Should(BeTrue())

	return env
}

func (env *testEnv) stop() {
	env.cancel()
	<-env.done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	Expect(env.status.Stop(shutdownCtx)).To(Succeed())
}

// wireClient is one newline-delimited JSON connection.
type wireClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func dialEndpoint(addr string) *wireClient {
	conn, err := net.Dial("tcp", addr)
	Expect(err).NotTo(HaveOccurred())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	return &wireClient{conn: conn, scanner: scanner}
}

func (c *wireClient) sendLine(line string) {
	_, err := c.conn.Write([]byte(line + "\n"))
	Expect(err).NotTo(HaveOccurred())
}

func (c *wireClient) readLine() string {
	Expect(c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
	Expect(c.scanner.Scan()).To(BeTrue(), "expected a reply line")
	return c.scanner.Text()
}

func (c *wireClient) close() {
	_ = c.conn.Close()
}

// envelope is one outbound message as seen by a client.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *wireClient) readEnvelope() envelope {
	var env envelope
	Expect(json.Unmarshal([]byte(c.readLine()), &env)).To(Succeed())
	return env
}

// loginResult mirrors login.LoginResult's JSON shape.
type loginResult struct {
	Success     bool
	Reason      string
	UniqueID    int
	DisplayName string
	Registered  bool
	MenuData    struct{ Classes []string }
}

func (c *wireClient) login(name, password, authCode string) loginResult {
	passwordJSON, err := json.Marshal([]byte(password))
	Expect(err).NotTo(HaveOccurred())

	c.sendLine(fmt.Sprintf(
		`{"seq":1,"requests":[{"code":58,"login_name":%q,"password_hash":%s,"auth_code":%q}]}`,
		name, passwordJSON, authCode))

	env := c.readEnvelope()
	Expect(env.Type).To(Equal("login_result"))

	var result loginResult
	Expect(json.Unmarshal(env.Data, &result)).To(Succeed())
	return result
}

// serverList mirrors login.ServerList's JSON shape.
type serverList struct {
	Servers []struct {
		ServerID    int
		MatchID     int
		Description string
		Mode        string
		Locked      bool
	}
}

func (c *wireClient) requestServerList() serverList {
	c.sendLine(`{"seq":2,"requests":[{"code":213}]}`)
	env := c.readEnvelope()
	Expect(env.Type).To(Equal("server_list"))

	var list serverList
	Expect(json.Unmarshal(env.Data, &list)).To(Succeed())
	return list
}

func requestAuthCode(addr, name string) string {
	c := dialEndpoint(addr)
	defer c.close()
	c.sendLine(name)
	return c.readLine()
}

var _ = Describe("Login server", func() {
	var env *testEnv

	BeforeEach(func() {
		env = startEnv()
	})

	AfterEach(func() {
		env.stop()
	})

	Describe("auth code registration", func() {
		It("registers an account and logs in with it", func() {
			code := requestAuthCode(env.transport.Addr("authcode"), "kate")
			Expect(code).To(HaveLen(8))

			player := dialEndpoint(env.transport.Addr("player"))
			defer player.close()

			result := player.login("kate", "pw-hash", code)
			Expect(result.Success).To(BeTrue())
			Expect(result.Registered).To(BeTrue())
			Expect(result.DisplayName).To(Equal("kate"))
			Expect(result.UniqueID).To(Equal(1_000_000))
			Expect(result.MenuData.Classes).To(Equal([]string{"light", "medium", "heavy"}))
		})

		It("rejects invalid login names", func() {
			reply := requestAuthCode(env.transport.Addr("authcode"), "x")
			Expect(reply).To(HavePrefix("Error:"))
		})

		It("lets a registered account log back in with just the password", func() {
			code := requestAuthCode(env.transport.Addr("authcode"), "kate")

			first := dialEndpoint(env.transport.Addr("player"))
			Expect(first.login("kate", "pw-hash", code).Registered).To(BeTrue())
			first.close()

			// Wait for the disconnect to release the account's unique ID.
			second := dialEndpoint(env.transport.Addr("player"))
			defer second.close()
			Eventually(func() bool {
				result := second.login("kate", "pw-hash", "")
				return result.Success && result.Registered
			}).WithTimeout(2 * time.Second).Should(BeTrue())
		})

		It("rejects a second concurrent login on the same account", func() {
			code := requestAuthCode(env.transport.Addr("authcode"), "kate")

			first := dialEndpoint(env.transport.Addr("player"))
			defer first.close()
			Expect(first.login("kate", "pw-hash", code).Success).To(BeTrue())

			second := dialEndpoint(env.transport.Addr("player"))
			defer second.close()
			result := second.login("kate", "pw-hash", "")
			Expect(result.Success).To(BeFalse())
			Expect(result.Reason).To(Equal("account is already logged in"))
		})
	})

	Describe("unregistered players", func() {
		It("assigns prefixed display names with collision suffixes", func() {
			first := dialEndpoint(env.transport.Addr("player"))
			defer first.close()
			Expect(first.login("kate", "pw", "").DisplayName).To(Equal("unvrf-kate"))

			second := dialEndpoint(env.transport.Addr("player"))
			defer second.close()
			Expect(second.login("kate", "pw", "").DisplayName).To(Equal("unv02-kate"))
		})
	})

	Describe("game servers", func() {
		publishServer := func(launcher *wireClient, description string) {
			launcher.sendLine(`{"event":"protocol_version","data":{"version":"3.0.0"}}`)
			launcher.sendLine(fmt.Sprintf(
				`{"event":"server_info","data":{"description":%q,"motd":"hi","mode":"ctf"}}`, description))
			launcher.sendLine(`{"event":"server_ready","data":{"port":7777}}`)
		}

		It("lists joinable servers to authenticated players", func() {
			launcher := dialEndpoint(env.transport.Addr("launcher"))
			defer launcher.close()
			publishServer(launcher, "duel arena")

			player := dialEndpoint(env.transport.Addr("player"))
			defer player.close()
			Expect(player.login("kate", "pw", "").Success).To(BeTrue())

			Eventually(func() int {
				return len(player.requestServerList().Servers)
			}).WithTimeout(2 * time.Second).Should(Equal(1))

			list := player.requestServerList()
			Expect(list.Servers[0].ServerID).To(Equal(1))
			Expect(list.Servers[0].MatchID).To(Equal(10_000_001))
			Expect(list.Servers[0].Description).To(Equal("duel arena"))
		})

		It("reuses a freed server ID", func() {
			first := dialEndpoint(env.transport.Addr("launcher"))
			publishServer(first, "first")

			player := dialEndpoint(env.transport.Addr("player"))
			defer player.close()
			Expect(player.login("kate", "pw", "").Success).To(BeTrue())
			Eventually(func() int {
				return len(player.requestServerList().Servers)
			}).WithTimeout(2 * time.Second).Should(Equal(1))

			first.close()
			Eventually(func() int {
				return len(player.requestServerList().Servers)
			}).WithTimeout(2 * time.Second).Should(BeZero())

			second := dialEndpoint(env.transport.Addr("launcher"))
			defer second.close()
			publishServer(second, "second")

			Eventually(func() int {
				list := player.requestServerList()
				if len(list.Servers) != 1 {
					return 0
				}
				return list.Servers[0].ServerID
			}).WithTimeout(2 * time.Second).Should(Equal(1))
		})

		It("disconnects launchers with an incompatible protocol", func() {
			launcher := dialEndpoint(env.transport.Addr("launcher"))
			defer launcher.close()

			launcher.sendLine(`{"event":"protocol_version","data":{"version":"2.0.0"}}`)

			// The server sends a version notice and closes. The notice races
			// the close, so only the disconnect itself is guaranteed.
			Expect(launcher.conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
			for launcher.scanner.Scan() {
				var notice envelope
				Expect(json.Unmarshal(launcher.scanner.Bytes(), &notice)).To(Succeed())
				Expect(notice.Type).To(Equal("version_notice"))
			}
			Expect(launcher.scanner.Err()).To(Or(BeNil(), MatchError(ContainSubstring("closed"))))
		})
	})

	Describe("status endpoint", func() {
		It("reports online counts", func() {
			player := dialEndpoint(env.transport.Addr("player"))
			defer player.close()
			Expect(player.login("kate", "pw", "").Success).To(BeTrue())

			launcher := dialEndpoint(env.transport.Addr("launcher"))
			defer launcher.close()

			Eventually(func() map[string]int {
				resp, err := http.Get("http://" + env.status.Addr() + "/status")
				if err != nil {
					return nil
				}
				defer resp.Body.Close()
				var counts map[string]int
				if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
					return nil
				}
				return counts
			}).WithTimeout(2 * time.Second).Should(Equal(map[string]int{
				"online_players": 1,
				"online_servers": 1,
			}))
		})

		It("returns 404 for unknown paths", func() {
			resp, err := http.Get("http://" + env.status.Addr() + "/nope")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("account persistence", func() {
		It("survives a save and reload", func() {
			code := requestAuthCode(env.transport.Addr("authcode"), "kate")

			player := dialEndpoint(env.transport.Addr("player"))
			Expect(player.login("kate", "pw-hash", code).Registered).To(BeTrue())
			player.close()

			Expect(env.accounts.Save(context.Background())).To(Succeed())

			acct, err := env.accounts.GetByLoginName(context.Background(), "kate")
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.Registered()).To(BeTrue())
			Expect(acct.UniqueID).To(Equal(1_000_000))
		})
	})
})
