package server

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/message"
)

// gossipTopic is the single pubsub topic the cohort's broadcast
// announcements travel over.
const gossipTopic = "triadnet/gossip/1.0.0"

// directProtocol is the libp2p protocol ID for directed, per-peer
// request/response traffic (Ping/Pong, GetBlocks/Blocks, and friends).
const directProtocol protocol.ID = "/triadnet/direct/1.0.0"

// Server is a cloneable broadcast handle backed by a libp2p host and a
// gossipsub topic. Cohort membership is static, so there is no DHT or
// mDNS discovery layer: peers are dialed directly from known
// multiaddrs at startup.
type Server struct {
	host  host.Host
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	mu    sync.RWMutex
	peers map[peer.ID]*directPeer

	inbound chan Inbound
}

// New constructs a Server listening on listenAddr and joins the
// gossip topic. Cohort peers are dialed separately via Dial.
func New(ctx context.Context, listenAddr string, inboundCap int) (*Server, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return nil, fmt.Errorf("server: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("server: create pubsub: %w", err)
	}

	topic, err := ps.Join(gossipTopic)
	if err != nil {
		return nil, fmt.Errorf("server: join topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("server: subscribe: %w", err)
	}

	s := &Server{
		host:    h,
		topic:   topic,
		sub:     sub,
		peers:   make(map[peer.ID]*directPeer),
		inbound: make(chan Inbound, inboundCap),
	}

	h.SetStreamHandler(directProtocol, s.handleStream)
	go s.readTopic(ctx)

	return s, nil
}

// Inbound returns the shared, bounded channel every received message
// (broadcast or directed) is delivered on. The gossip worker pool
// consumes from this channel.
func (s *Server) Inbound() <-chan Inbound {
	return s.inbound
}

// Broadcast publishes msg to the gossip topic. Publish errors are
// logged, not propagated: per the error taxonomy, transient I/O
// failures never cross the actor boundary.
func (s *Server) Broadcast(msg message.Message) {
	if err := s.topic.Publish(context.Background(), msg.Encode()); err != nil {
		log.WithComponent("server").Warn().Err(err).Msg("broadcast publish failed")
	}
}

// Dial connects to a cohort peer at addr and registers it for directed
// messaging.
func (s *Server) Dial(ctx context.Context, addr multiaddr.Multiaddr) (Peer, error) {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("server: parse peer addr: %w", err)
	}
	if err := s.host.Connect(ctx, *info); err != nil {
		return nil, fmt.Errorf("server: connect: %w", err)
	}

	stream, err := s.host.NewStream(ctx, info.ID, directProtocol)
	if err != nil {
		return nil, fmt.Errorf("server: open stream: %w", err)
	}

	p := s.registerStream(info.ID, stream)
	return p, nil
}

func (s *Server) handleStream(stream network.Stream) {
	s.registerStream(stream.Conn().RemotePeer(), stream)
}

func (s *Server) registerStream(id peer.ID, stream network.Stream) *directPeer {
	p := &directPeer{
		id:     id.String(),
		stream: stream,
	}

	s.mu.Lock()
	s.peers[id] = p
	s.mu.Unlock()

	go p.readLoop(s.inbound)
	return p
}

func (s *Server) readTopic(ctx context.Context) {
	for {
		m, err := s.sub.Next(ctx)
		if err != nil {
			return
		}
		if m.ReceivedFrom == s.host.ID() {
			continue
		}
		msg, err := message.Decode(m.Data)
		if err != nil {
			log.WithComponent("server").Debug().Err(err).Msg("dropping malformed gossip message")
			continue
		}

		s.mu.RLock()
		p := s.peers[m.ReceivedFrom]
		s.mu.RUnlock()

		select {
		case s.inbound <- Inbound{From: p, Msg: msg}:
		default:
			log.WithComponent("server").Warn().Msg("inbound channel full, dropping message")
		}
	}
}

// directPeer is the Peer implementation backed by a libp2p stream.
type directPeer struct {
	id     string
	stream network.Stream
}

func (p *directPeer) ID() string { return p.id }

func (p *directPeer) Send(msg message.Message) error {
	encoded := msg.Encode()
	w := bufio.NewWriter(p.stream)
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("peer %s: send: %w", p.id, err)
	}
	return w.Flush()
}

func (p *directPeer) readLoop(inbound chan<- Inbound) {
	r := bufio.NewReader(p.stream)
	buf := make([]byte, 65536)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		msg, err := message.Decode(buf[:n])
		if err != nil {
			continue
		}
		select {
		case inbound <- Inbound{From: p, Msg: msg}:
		default:
		}
	}
}
