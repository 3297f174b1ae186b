// Copyright (C) 2025 walletmesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package router implements the three-mailbox message router of
// SPEC_FULL.md §4.4: one goroutine draining inbound requests, one draining
// inbound responses, one serializing outbound publishes. Per §9's design
// note, the router never references the pairing manager's concrete type:
// inbound requests go to whatever implements the narrow Dispatcher
// interface below (the session engine, installed through the manager) —
// that is what breaks the manager-holds-router / router-calls-back cycle.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/pending"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/internal/logger"
	"github.com/walletmesh/wc-core/internal/metrics"
	"github.com/walletmesh/wc-core/internal/relay"
)

// Dispatcher handles one decoded inbound request and returns the response
// to publish back, or ok=false if the method is unrecognized (the router
// then replies with CodeMethodUnsupported itself).
type Dispatcher interface {
	DispatchRequest(ctx context.Context, topic string, req rpc.Request) (resp rpc.Response, ok bool)
}

// KeyExchangeDispatcher is an optional extension of Dispatcher for the one
// response spec.md §9 carries in a Type-1 envelope: the wallet's
// session_propose reply, which must embed the wallet's own public key so
// the dApp can derive the session key. A Dispatcher that never needs this
// simply doesn't implement it.
type KeyExchangeDispatcher interface {
	Dispatcher
	// KeyExchangeResponseFor reports whether the response to the request
	// just dispatched on method must go out as a Type-1 envelope, and if
	// so, which public key to embed.
	KeyExchangeResponseFor(method string) (senderPub []byte, use bool)
}

// outboundJob is one entry in the transport mailbox: encrypt+publish req on
// topic, after first registering a pending-request slot for it.
type outboundJob struct {
	ctx        context.Context
	topic      string
	method     rpc.Method
	params     any
	envelopeTy keystore.EnvelopeType
	senderPub  []byte
	result     chan outboundResult
}

type outboundResult struct {
	id   uint64
	slot <-chan rpc.Response
	err  error
}

// Router owns the keystore, relay client, and pending-request table, and
// serializes all three mailboxes described in SPEC_FULL.md §4.4.
type Router struct {
	ks     *keystore.Keystore
	client relay.Client
	table  *pending.Table
	log    logger.Logger

	dispatcher Dispatcher

	requestCh   chan inboundDecoded
	responseCh  chan inboundDecoded
	transportCh chan outboundJob

	done chan struct{}
}

type inboundDecoded struct {
	topic   string
	payload json.RawMessage
}

// New creates a Router. SetDispatcher must be called before relay messages
// start arriving (the session engine does this once, through
// pairing.Manager.SetDispatcher, when it is constructed).
func New(ks *keystore.Keystore, client relay.Client, table *pending.Table, log logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	r := &Router{
		ks:          ks,
		client:      client,
		table:       table,
		log:         log,
		requestCh:   make(chan inboundDecoded, 64),
		responseCh:  make(chan inboundDecoded, 64),
		transportCh: make(chan outboundJob, 64),
		done:        make(chan struct{}),
	}
	go r.runRequestMailbox()
	go r.runResponseMailbox()
	go r.runTransportMailbox()
	return r
}

// SetDispatcher installs the request handler. Safe to call once before any
// traffic flows.
func (r *Router) SetDispatcher(d Dispatcher) { r.dispatcher = d }

// Close stops all three mailbox goroutines.
func (r *Router) Close() { close(r.done) }

// HandleEnvelope is the relay.Handler entry point: decrypts the envelope
// on topic and routes it to the request or response mailbox. Per spec.md
// §4.4, messages whose tag is outside [1000, 1115] are dropped before
// decryption is even attempted.
func (r *Router) HandleEnvelope(msg relay.PublishedMessage) {
	if msg.Tag < rpc.MinTag || msg.Tag > rpc.MaxTag {
		metrics.RelayMessagesReceived.WithLabelValues("dropped").Inc()
		r.log.Warn("router: dropping message with out-of-range tag", logger.Int("tag", msg.Tag), logger.String("topic", msg.Topic))
		return
	}

	plaintext, err := r.ks.Decrypt(msg.Topic, msg.Message)
	if err != nil {
		metrics.RelayMessagesReceived.WithLabelValues("decrypt_error").Inc()
		r.log.Error("router: decrypt failed, dropping message", logger.String("topic", msg.Topic), logger.Error(err))
		return
	}

	decoded := inboundDecoded{topic: msg.Topic, payload: plaintext}

	var probe struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(plaintext, &probe); err != nil {
		metrics.RelayMessagesReceived.WithLabelValues("dropped").Inc()
		r.log.Error("router: malformed JSON-RPC payload, dropping", logger.String("topic", msg.Topic), logger.Error(err))
		return
	}

	metrics.RelayMessagesReceived.WithLabelValues("routed").Inc()
	if probe.Method != nil {
		select {
		case r.requestCh <- decoded:
		case <-r.done:
		}
		return
	}
	select {
	case r.responseCh <- decoded:
	case <-r.done:
	}
}

func (r *Router) runRequestMailbox() {
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.requestCh:
			r.handleRequest(msg)
		}
	}
}

func (r *Router) handleRequest(msg inboundDecoded) {
	var req rpc.Request
	if err := json.Unmarshal(msg.payload, &req); err != nil {
		r.log.Error("router: malformed request, dropping", logger.String("topic", msg.topic), logger.Error(err))
		return
	}

	ctx := context.Background()
	var resp rpc.Response
	if r.dispatcher != nil {
		var ok bool
		resp, ok = r.dispatcher.DispatchRequest(ctx, msg.topic, req)
		if !ok {
			resp = rpc.NewError(req.ID, rpc.CodeMethodUnsupported, fmt.Sprintf("unsupported method %q", req.Method))
		}
	} else {
		resp = rpc.NewError(req.ID, rpc.CodeMethodUnsupported, "no dispatcher installed")
	}

	if kd, isKD := r.dispatcher.(KeyExchangeDispatcher); isKD {
		if senderPub, use := kd.KeyExchangeResponseFor(req.Method); use {
			if err := r.publishKeyExchangeResponse(ctx, msg.topic, req.Method, resp, senderPub); err != nil {
				r.log.Error("router: publish key-exchange response failed", logger.String("topic", msg.topic), logger.Error(err))
			}
			return
		}
	}

	if err := r.publishResponse(ctx, msg.topic, req.Method, resp); err != nil {
		r.log.Error("router: publish response failed", logger.String("topic", msg.topic), logger.Error(err))
	}
}

// responseTagAndTTL looks up the response-leg tag and TTL spec.md §4.8
// assigns to method. An unrecognized method (can only arise from a request
// the dispatcher itself already rejected with CodeMethodUnsupported) falls
// back to the pairing tag range's floor and a one-minute TTL.
func responseTagAndTTL(method string) (tag int, ttl time.Duration) {
	meta, ok := rpc.Meta(rpc.Method(method))
	if !ok {
		return rpc.MinTag, time.Minute
	}
	return meta.Tags.Response, time.Duration(meta.TTLSeconds) * time.Second
}

func (r *Router) publishResponse(ctx context.Context, topic, method string, resp rpc.Response) error {
	envelope, err := r.ks.Encrypt(topic, resp)
	if err != nil {
		return fmt.Errorf("router: encrypt response: %w", err)
	}
	tag, ttl := responseTagAndTTL(method)
	return r.client.Publish(ctx, topic, envelope, tag, ttl, false)
}

// publishKeyExchangeResponse emits resp as a Type-1 envelope carrying
// senderPub, per spec.md §9's single allowed use: the wallet's
// session_propose reply.
func (r *Router) publishKeyExchangeResponse(ctx context.Context, topic, method string, resp rpc.Response, senderPub []byte) error {
	nonce, err := keystore.NewNonce()
	if err != nil {
		return err
	}
	envelope, err := r.ks.EncryptWith(topic, resp, nonce, keystore.EnvelopeTypeKeyExchange, senderPub)
	if err != nil {
		return fmt.Errorf("router: encrypt key-exchange response: %w", err)
	}
	tag, ttl := responseTagAndTTL(method)
	return r.client.Publish(ctx, topic, envelope, tag, ttl, false)
}

func (r *Router) runResponseMailbox() {
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.responseCh:
			var resp rpc.Response
			if err := json.Unmarshal(msg.payload, &resp); err != nil {
				r.log.Error("router: malformed response, dropping", logger.String("topic", msg.topic), logger.Error(err))
				continue
			}
			if !r.table.Deliver(resp) {
				r.log.Error("router: response for unknown request id, dropping", logger.Any("id", resp.ID), logger.String("topic", msg.topic))
			}
		}
	}
}

func (r *Router) runTransportMailbox() {
	for {
		select {
		case <-r.done:
			return
		case job := <-r.transportCh:
			job.result <- r.publish(job)
		}
	}
}

func (r *Router) publish(job outboundJob) outboundResult {
	meta, ok := rpc.Meta(job.method)
	if !ok {
		metrics.RelayMessagesPublished.WithLabelValues("failure").Inc()
		return outboundResult{err: fmt.Errorf("router: unknown method %q", job.method)}
	}

	id, slot := r.table.NewRequest()
	req, err := rpc.NewRequest(id, string(job.method), job.params)
	if err != nil {
		r.table.Forget(id)
		metrics.RelayMessagesPublished.WithLabelValues("failure").Inc()
		return outboundResult{err: fmt.Errorf("router: marshal request: %w", err)}
	}

	var envelope string
	if job.envelopeTy == keystore.EnvelopeTypeKeyExchange {
		envelope, err = r.encryptKeyExchange(job.topic, req, job.senderPub)
	} else {
		envelope, err = r.ks.Encrypt(job.topic, req)
	}
	if err != nil {
		r.table.Forget(id)
		metrics.RelayMessagesPublished.WithLabelValues("failure").Inc()
		return outboundResult{err: fmt.Errorf("router: encrypt request: %w", err)}
	}

	if err := r.client.Publish(job.ctx, job.topic, envelope, meta.Tags.Request, time.Duration(meta.TTLSeconds)*time.Second, meta.RequestPrompt); err != nil {
		r.table.Forget(id)
		metrics.RelayMessagesPublished.WithLabelValues("failure").Inc()
		return outboundResult{err: fmt.Errorf("router: publish: %w", err)}
	}

	metrics.RelayMessagesPublished.WithLabelValues("success").Inc()
	return outboundResult{id: id, slot: slot}
}

func (r *Router) encryptKeyExchange(topic string, req rpc.Request, senderPub []byte) (string, error) {
	nonce, err := keystore.NewNonce()
	if err != nil {
		return "", err
	}
	return r.ks.EncryptWith(topic, req, nonce, keystore.EnvelopeTypeKeyExchange, senderPub)
}

// PublishRequest enqueues an outbound request on the transport mailbox and
// blocks (respecting ctx) until the publish itself completes, returning the
// pending-request id and the slot to Wait on. This is the "allocates a
// pending-request slot" half of spec.md §4.4's transport mailbox
// description; callers combine it with (*pending.Table).Wait.
func (r *Router) PublishRequest(ctx context.Context, topic string, method rpc.Method, params any) (id uint64, slot <-chan rpc.Response, err error) {
	return r.publishRequestWith(ctx, topic, method, params, keystore.EnvelopeTypePlain, nil)
}

// PublishKeyExchangeRequest is PublishRequest's Type-1 variant: the
// envelope additionally carries senderPub. The wallet's session_propose
// response does not go through here; it is published by
// publishKeyExchangeResponse.
func (r *Router) PublishKeyExchangeRequest(ctx context.Context, topic string, method rpc.Method, params any, senderPub []byte) (id uint64, slot <-chan rpc.Response, err error) {
	return r.publishRequestWith(ctx, topic, method, params, keystore.EnvelopeTypeKeyExchange, senderPub)
}

func (r *Router) publishRequestWith(ctx context.Context, topic string, method rpc.Method, params any, typ keystore.EnvelopeType, senderPub []byte) (uint64, <-chan rpc.Response, error) {
	job := outboundJob{
		ctx:        ctx,
		topic:      topic,
		method:     method,
		params:     params,
		envelopeTy: typ,
		senderPub:  senderPub,
		result:     make(chan outboundResult, 1),
	}
	select {
	case r.transportCh <- job:
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res.id, res.slot, res.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Wait blocks for a response to a previously published request, per the
// method's TTL.
func (r *Router) Wait(ctx context.Context, method rpc.Method, id uint64, slot <-chan rpc.Response) (rpc.Response, error) {
	start := time.Now()
	ttl := time.Duration(method.TTL()) * time.Second
	resp, err := r.table.Wait(ctx, id, slot, ttl)
	metrics.PendingRequestLatency.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PendingRequestTimeouts.WithLabelValues(string(method)).Inc()
	}
	return resp, err
}
